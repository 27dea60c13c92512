package users

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

const (
	passwordLen     = 8
	passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// DeleteResult reports what a member deletion removed.
type DeleteResult struct {
	Users       int64
	Assignments int64
	Memberships int64
}

// Service manages platform accounts and the ciso member sets.
type Service struct {
	users       ports.UserRepository
	assignments ports.AssignmentRepository
	mail        ports.MailQueue
	log         *slog.Logger
	baseURL     string
}

func New(users ports.UserRepository, assignments ports.AssignmentRepository, mail ports.MailQueue, baseURL string, log *slog.Logger) *Service {
	return &Service{users: users, assignments: assignments, mail: mail, baseURL: baseURL, log: log}
}

// CreateCISO provisions a ciso account with a generated temporary
// password and queues the credential mail. Duplicate emails conflict.
func (s *Service) CreateCISO(ctx context.Context, email, companyName string, tier domain.OrgTier) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.Validationf("invalid email address")
	}
	if strings.TrimSpace(companyName) == "" {
		return domain.User{}, domain.Validationf("missing company name")
	}
	if !domain.ValidTier(tier) {
		return domain.User{}, domain.Validationf("invalid organization type %q", tier)
	}
	return s.provision(ctx, domain.User{
		Email:            email,
		Role:             domain.RoleCISO,
		CompanyName:      strings.TrimSpace(companyName),
		OrganizationType: tier,
		Status:           domain.AccessGranted,
	}, "Your CISO Access to the APEX Platform")
}

// CreateMember provisions an owner or it_committee account under a
// ciso and records the membership mapping.
func (s *Service) CreateMember(ctx context.Context, cisoEmail, memberEmail string, role domain.Role) (domain.User, error) {
	cisoEmail = strings.ToLower(strings.TrimSpace(cisoEmail))
	memberEmail = strings.ToLower(strings.TrimSpace(memberEmail))
	if memberEmail == "" || !strings.Contains(memberEmail, "@") {
		return domain.User{}, domain.Validationf("invalid member email address")
	}
	if role != domain.RoleOwner && role != domain.RoleITCommittee {
		return domain.User{}, domain.Validationf("member role must be owner or it_committee")
	}

	ciso, found, err := s.users.GetByEmail(ctx, cisoEmail)
	if err != nil {
		return domain.User{}, err
	}
	if !found || ciso.Role != domain.RoleCISO {
		return domain.User{}, domain.ErrNotFound
	}

	u, err := s.provision(ctx, domain.User{
		Email:            memberEmail,
		Role:             role,
		CompanyName:      ciso.CompanyName,
		OrganizationType: ciso.OrganizationType,
		Status:           domain.AccessGranted,
	}, "Your Access to the APEX Platform")
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.AddMember(ctx, cisoEmail, memberEmail); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) provision(ctx context.Context, u domain.User, subject string) (domain.User, error) {
	password, err := tempPassword()
	if err != nil {
		return domain.User{}, fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}

	body := fmt.Sprintf(
		"Hello,\n\nAn account has been created for you on the APEX compliance platform.\n\n"+
			"Login: %s\nEmail: %s\nTemporary password: %s\n\nPlease change your password after first login.\n",
		s.baseURL, u.Email, password)
	if err := s.mail.Enqueue(ctx, ports.Mail{To: u.Email, Subject: subject, Text: body}); err != nil {
		// Mail is best effort; the account exists either way.
		s.log.Error("queue credential mail", "to", u.Email, "error", err)
	}
	return created, nil
}

// UpdateAccess flips a user between granted and restricted.
func (s *Service) UpdateAccess(ctx context.Context, email string, status domain.AccessStatus) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if status != domain.AccessGranted && status != domain.AccessRestricted {
		return domain.Validationf("status must be granted or restricted")
	}
	return s.users.UpdateUserStatus(ctx, email, status)
}

// DeleteMember removes the member's account, all of their assignments
// and their membership rows, reporting how many of each went away.
// Only the ciso the member is mapped under may delete them.
func (s *Service) DeleteMember(ctx context.Context, cisoEmail, memberEmail string) (DeleteResult, error) {
	cisoEmail = strings.ToLower(strings.TrimSpace(cisoEmail))
	memberEmail = strings.ToLower(strings.TrimSpace(memberEmail))
	if memberEmail == "" {
		return DeleteResult{}, domain.Validationf("missing member email")
	}

	members, err := s.users.Members(ctx, cisoEmail)
	if err != nil {
		return DeleteResult{}, err
	}
	mapped := false
	for _, m := range members {
		if m == memberEmail {
			mapped = true
			break
		}
	}
	if !mapped {
		return DeleteResult{}, domain.ErrNotFound
	}

	var res DeleteResult
	if res.Users, err = s.users.DeleteUser(ctx, memberEmail); err != nil {
		return res, err
	}
	if res.Assignments, err = s.assignments.DeleteByOwner(ctx, memberEmail); err != nil {
		return res, err
	}
	if res.Memberships, err = s.users.RemoveMember(ctx, memberEmail); err != nil {
		return res, err
	}
	s.log.Info("member deleted", "email", memberEmail,
		"assignments", res.Assignments, "memberships", res.Memberships)
	return res, nil
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// ListMembers returns the member accounts mapped under a ciso.
func (s *Service) ListMembers(ctx context.Context, cisoEmail string) ([]domain.User, error) {
	cisoEmail = strings.ToLower(strings.TrimSpace(cisoEmail))
	emails, err := s.users.Members(ctx, cisoEmail)
	if err != nil {
		return nil, err
	}
	members := make([]domain.User, 0, len(emails))
	for _, e := range emails {
		u, found, err := s.users.GetByEmail(ctx, e)
		if err != nil {
			return nil, err
		}
		if found {
			members = append(members, u)
		}
	}
	return members, nil
}

// tempPassword draws 8 characters uniformly from the alphanumeric set.
func tempPassword() (string, error) {
	max := big.NewInt(int64(len(passwordCharset)))
	b := make([]byte, passwordLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = passwordCharset[n.Int64()]
	}
	return string(b), nil
}
