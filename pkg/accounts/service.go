package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tracklet/tracklet/pkg/audit"
	"github.com/tracklet/tracklet/pkg/identity"
	"github.com/tracklet/tracklet/pkg/observability"
	"github.com/tracklet/tracklet/pkg/session"
	"github.com/tracklet/tracklet/pkg/userstore"
)

// User-facing messages. Credential failures share one message so the
// response does not reveal whether the identifier or the password was
// wrong.
const (
	MsgAccountExists      = "account already exists"
	MsgPasswordTooWeak    = "password too weak"
	MsgInvalidCredentials = "invalid email/username or password"
	MsgMFARequired        = "additional verification required"
	MsgGenericFailure     = "something went wrong, please try again"
)

// ErrIdentityMismatch is returned when a destructive operation names a
// user other than the one the current session authenticated.
var ErrIdentityMismatch = errors.New("acting user does not match the authenticated session")

// AuthResult is the outcome of a signup or login
type AuthResult struct {
	Success bool
	Message string
	User    *userstore.UserRecord

	// MFARequired marks the distinguished challenge-pending outcome; the
	// challenge reference feeds the follow-up verification step.
	MFARequired  bool
	MFAChallenge string

	// Tokens from the provider on success, for subsequent authenticated
	// provider calls
	IDToken      string
	RefreshToken string
}

// SignupParams carries the signup request fields
type SignupParams struct {
	Email    string
	Password string
	Username string
	FullName string
	Gender   string
	// DateOfBirth is YYYY-MM-DD, stored as given
	DateOfBirth string
}

// Service reconciles the identity provider with the local stores
type Service struct {
	provider identity.Provider
	users    userstore.Store
	session  *session.Manager
	restorer Restorer
	logger   *observability.Logger
	metrics  *observability.Metrics
	auditor  audit.Logger

	now func() time.Time
}

// ServiceOptions configures the engine
type ServiceOptions struct {
	Restorer Restorer
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Auditor  audit.Logger
	Now      func() time.Time
}

// NewService creates the reconciliation engine
func NewService(provider identity.Provider, users userstore.Store, sessions *session.Manager, opts ServiceOptions) *Service {
	if opts.Restorer == nil {
		opts.Restorer = NopRestorer{}
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	if opts.Auditor == nil {
		opts.Auditor = audit.NopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		provider: provider,
		users:    users,
		session:  sessions,
		restorer: opts.Restorer,
		logger:   opts.Logger.WithComponent("accounts"),
		metrics:  opts.Metrics,
		auditor:  opts.Auditor,
		now:      opts.Now,
	}
}

// Signup creates the remote account and reconciles the local stores
func (s *Service) Signup(ctx context.Context, params SignupParams) *AuthResult {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	created, err := s.provider.CreateAccount(ctx, email, params.Password)
	if err != nil {
		return s.signupFailure(ctx, email, err)
	}
	if created == nil || created.Identity == nil || created.Identity.ID == "" {
		return s.signupFailure(ctx, email,
			identity.NewProviderError(identity.CodeOther, "empty provider result", nil))
	}

	now := s.now().UTC()
	record := &userstore.UserRecord{
		ID:                      created.Identity.ID,
		Email:                   email,
		Username:                strings.TrimSpace(params.Username),
		FullName:                params.FullName,
		Gender:                  params.Gender,
		DateOfBirth:             params.DateOfBirth,
		NotificationPreferences: userstore.DefaultNotificationPreferences(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	// The remote account exists; local persistence is best-effort from
	// here on.
	s.persistRecord(ctx, record, "signup")
	s.setSessionFlags(ctx, record.ID)

	s.metrics.RecordSignup("success")
	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeSignup, audit.EventStatusSuccess).
		WithActor(record.ID).
		WithSubject(record.ID).
		WithMessage("account created"))
	s.logger.Info("signup succeeded", "user_id", record.ID)

	return &AuthResult{
		Success:      true,
		User:         record,
		IDToken:      created.IDToken,
		RefreshToken: created.RefreshToken,
	}
}

func (s *Service) signupFailure(ctx context.Context, email string, err error) *AuthResult {
	var message, outcome string
	switch identity.CodeOf(err) {
	case identity.CodeEmailInUse:
		message, outcome = MsgAccountExists, "email_in_use"
	case identity.CodeWeakPassword:
		message, outcome = MsgPasswordTooWeak, "weak_password"
	default:
		message, outcome = MsgGenericFailure, "provider_error"
	}

	s.metrics.RecordSignup(outcome)
	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeSignupFailed, audit.EventStatusFailure).
		WithMetadata("outcome", outcome).
		WithError(err))
	s.logger.WithError(err).Info("signup failed", "outcome", outcome)

	return &AuthResult{Success: false, Message: message}
}

// Login authenticates by email or username and reconciles the local record
func (s *Service) Login(ctx context.Context, identifier, password string) *AuthResult {
	var email string
	var local *userstore.UserRecord

	if strings.Contains(identifier, "@") {
		email = strings.ToLower(strings.TrimSpace(identifier))

		// The local lookup only preserves original username casing; a
		// miss or a store error does not block an email login.
		record, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			s.logger.WithError(err).Warn("local email lookup failed, proceeding to provider")
			s.metrics.RecordStoreFailure("userstore", "find_by_email")
		} else {
			local = record
		}
	} else {
		// Usernames only exist locally; the provider authenticates by
		// email, so a username without a local record cannot log in.
		record, err := s.users.FindByUsername(ctx, strings.TrimSpace(identifier))
		if err != nil {
			s.logger.WithError(err).Warn("local username lookup failed")
			s.metrics.RecordStoreFailure("userstore", "find_by_username")
		}
		if record == nil {
			return s.loginFailure(ctx, identifier, "unknown_username", nil)
		}
		local = record
		email = record.Email
	}

	signedIn, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return s.loginFailure(ctx, identifier, string(identity.CodeOf(err)), err)
	}

	if signedIn.MFARequired {
		s.metrics.RecordLogin("mfa_required")
		s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeLoginMFARequired, audit.EventStatusSuccess).
			WithMetadata("identifier_kind", identifierKind(identifier)).
			WithMessage("second factor required"))
		return &AuthResult{
			Success:      false,
			Message:      MsgMFARequired,
			MFARequired:  true,
			MFAChallenge: signedIn.MFAChallenge,
		}
	}
	if signedIn.Identity == nil || signedIn.Identity.ID == "" {
		return s.loginFailure(ctx, identifier, "empty_provider_result", nil)
	}

	record := s.reconcileRecord(ctx, signedIn.Identity, local)

	// Restore is best-effort; a dead restore service must not fail login.
	if err := s.restorer.Restore(ctx, record.ID); err != nil {
		s.logger.WithError(err).Warn("restore trigger failed", "user_id", record.ID)
	}

	s.setSessionFlags(ctx, record.ID)

	s.metrics.RecordLogin("success")
	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeLogin, audit.EventStatusSuccess).
		WithActor(record.ID).
		WithSubject(record.ID).
		WithMetadata("identifier_kind", identifierKind(identifier)).
		WithMessage("login succeeded"))
	s.logger.Info("login succeeded", "user_id", record.ID)

	return &AuthResult{
		Success:      true,
		User:         record,
		IDToken:      signedIn.IDToken,
		RefreshToken: signedIn.RefreshToken,
	}
}

// reconcileRecord reuses the local record when one matched, otherwise
// synthesizes a fallback from the provider identity; either way the
// result is re-persisted
func (s *Service) reconcileRecord(ctx context.Context, ident *identity.Identity, local *userstore.UserRecord) *userstore.UserRecord {
	if local != nil {
		local.ID = ident.ID
		local.UpdatedAt = s.now().UTC()
		s.persistRecord(ctx, local, "login")
		return local
	}

	now := s.now().UTC()
	record := &userstore.UserRecord{
		ID:    ident.ID,
		Email: strings.ToLower(ident.Email),
		// Without a local record the email's local-part stands in for
		// the username until the user sets one.
		Username:                usernameFromEmail(ident.Email),
		FullName:                ident.DisplayName,
		NotificationPreferences: userstore.DefaultNotificationPreferences(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	s.persistRecord(ctx, record, "login_fallback")
	return record
}

func (s *Service) loginFailure(ctx context.Context, identifier, outcome string, err error) *AuthResult {
	s.metrics.RecordLogin(outcome)
	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeLoginFailed, audit.EventStatusFailure).
		WithMetadata("identifier_kind", identifierKind(identifier)).
		WithMetadata("outcome", outcome).
		WithError(err))
	s.logger.WithError(err).Info("login failed", "outcome", outcome)
	return &AuthResult{Success: false, Message: MsgInvalidCredentials}
}

// Logout signs out at the provider best-effort and then unconditionally
// clears the session flags; local session termination never depends on
// network reachability
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.provider.SignOut(ctx, refreshToken); err != nil {
		s.logger.WithError(err).Warn("provider sign-out failed, clearing session anyway")
	}

	userID, _ := s.session.CurrentUserID(ctx)
	err := s.session.Clear(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to clear session flags")
	}

	s.metrics.RecordLogout()
	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeLogout, audit.EventStatusSuccess).
		WithActor(userID).
		WithMessage("logged out"))
	return err
}

// UpdatePassword changes the provider password for the authenticated user
func (s *Service) UpdatePassword(ctx context.Context, idToken, newPassword string) *AuthResult {
	if err := s.provider.UpdatePassword(ctx, idToken, newPassword); err != nil {
		var message string
		switch identity.CodeOf(err) {
		case identity.CodeWeakPassword:
			message = MsgPasswordTooWeak
		default:
			message = MsgGenericFailure
		}
		s.auditor.Log(ctx, audit.NewEvent(audit.EventTypePasswordChange, audit.EventStatusFailure).
			WithError(err))
		s.logger.WithError(err).Info("password update failed")
		return &AuthResult{Success: false, Message: message}
	}

	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypePasswordChange, audit.EventStatusSuccess).
		WithMessage("password changed"))
	return &AuthResult{Success: true}
}

// ResetPassword requests a provider reset email. The response is the same
// whether or not the account exists, so the endpoint cannot be used to
// enumerate emails.
func (s *Service) ResetPassword(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		s.logger.WithError(err).Info("password reset request failed")
	}
	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypePasswordResetRequest, audit.EventStatusSuccess).
		WithMessage("password reset requested"))
}

// DeleteAccount removes the provider account, then the local record and
// session. Provider failure aborts; local cleanup is best-effort.
func (s *Service) DeleteAccount(ctx context.Context, idToken, userID string) error {
	if current, ok := s.session.CurrentUserID(ctx); ok && current != userID {
		s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeAccountDelete, audit.EventStatusDenied).
			WithActor(current).
			WithSubject(userID).
			WithMessage("session identity mismatch"))
		return ErrIdentityMismatch
	}

	if err := s.provider.DeleteAccount(ctx, idToken); err != nil {
		s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeAccountDelete, audit.EventStatusFailure).
			WithSubject(userID).
			WithError(err))
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		s.logger.WithError(err).Warn("failed to delete local record", "user_id", userID)
		s.metrics.RecordStoreFailure("userstore", "delete")
	}
	if err := s.session.Clear(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to clear session after account deletion")
	}

	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeAccountDelete, audit.EventStatusSuccess).
		WithActor(userID).
		WithSubject(userID).
		WithMessage("account deleted"))
	return nil
}

// UpdateProfile persists profile field changes to the local record
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*userstore.UserRecord, error) {
	record, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrUserNotFound
	}

	update.apply(record)
	record.UpdatedAt = s.now().UTC()

	if err := s.users.Put(ctx, record); err != nil {
		s.metrics.RecordStoreFailure("userstore", "put")
		return nil, err
	}

	s.auditor.Log(ctx, audit.NewEvent(audit.EventTypeProfileUpdate, audit.EventStatusSuccess).
		WithActor(userID).
		WithSubject(userID).
		WithMessage("profile updated"))
	return record, nil
}

// CurrentUser resolves the session's user id to its local record. Store
// errors and missing records yield an absent result, matching the
// session flag reads.
func (s *Service) CurrentUser(ctx context.Context) (*userstore.UserRecord, bool) {
	id, ok := s.session.CurrentUserID(ctx)
	if !ok {
		return nil, false
	}
	record, err := s.users.Get(ctx, id)
	if err != nil {
		s.logger.WithError(err).Warn("current user lookup failed", "user_id", id)
		return nil, false
	}
	if record == nil {
		return nil, false
	}
	return record, true
}

// GetUser reads the local record for a user, returning ErrUserNotFound
// when no record exists
func (s *Service) GetUser(ctx context.Context, userID string) (*userstore.UserRecord, error) {
	record, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrUserNotFound
	}
	return record, nil
}

// persistRecord writes the record and swallows failures: the provider
// account exists, so the caller still gets a success
func (s *Service) persistRecord(ctx context.Context, record *userstore.UserRecord, operation string) {
	if err := s.users.Put(ctx, record); err != nil {
		s.logger.WithError(err).Warn("local record persistence failed",
			"user_id", record.ID, "operation", operation)
		s.metrics.RecordStoreFailure("userstore", operation)
	}
}

func (s *Service) setSessionFlags(ctx context.Context, userID string) {
	if err := s.session.SetLoggedIn(ctx, userID); err != nil {
		s.logger.WithError(err).Warn("session flag write failed", "user_id", userID)
	}
}

func identifierKind(identifier string) string {
	if strings.Contains(identifier, "@") {
		return "email"
	}
	return "username"
}

func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
