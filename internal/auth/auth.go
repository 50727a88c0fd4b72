// Package auth implements the authentication and access-token lifecycle:
// resolving and authenticating a user, minting or reusing an access token,
// and attaching the resulting session via the activity driver.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/events"
	"mediahub.app/sessioncore/internal/ports"
	"mediahub.app/sessioncore/internal/sessioncore"
)

// ActivityLogger is the slice of *sessioncore.Manager the authenticator
// needs to attach a session once a token has been minted or reused.
type ActivityLogger interface {
	LogSessionActivity(ctx context.Context, appName, appVersion, deviceID, deviceName, remoteEndPoint string, user *core.User) (*sessioncore.Session, error)
	ReportSessionEnded(ctx context.Context, sessionID string) error
	SessionsByDeviceID(deviceID string) []*sessioncore.Session
}

// Authenticator resolves, authenticates, and tokenizes login attempts and
// attaches a session to the result.
type Authenticator struct {
	logger      *slog.Logger
	bus         *events.Bus
	userManager ports.UserManager
	repo        ports.AuthenticationRepository
	activity    ActivityLogger
	now         func() time.Time
	newToken    func() string
}

// Config bundles the collaborators an Authenticator needs.
type Config struct {
	Logger      *slog.Logger
	Bus         *events.Bus
	UserManager ports.UserManager
	Repository  ports.AuthenticationRepository
	Activity    ActivityLogger
	Now         func() time.Time
}

// NewAuthenticator builds an Authenticator from its collaborators.
func NewAuthenticator(cfg Config) *Authenticator {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Authenticator{
		logger:      cfg.Logger,
		bus:         cfg.Bus,
		userManager: cfg.UserManager,
		repo:        cfg.Repository,
		activity:    cfg.Activity,
		now:         cfg.Now,
		newToken:    newOpaqueToken,
	}
}

// newOpaqueToken mints a fresh opaque token as a UUID without dashes.
func newOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Request is the payload for AuthenticateNewSession / CreateNewSession.
type Request struct {
	UserID         string
	Username       string
	Password       string
	PasswordSHA1   string
	PasswordMD5    string
	AppName        string
	AppVersion     string
	DeviceID       string
	DeviceName     string
	RemoteEndPoint string
}

// CreateNewSession is AuthenticateNewSession with enforcePassword=false.
func (a *Authenticator) CreateNewSession(ctx context.Context, req Request) (*core.AuthenticationResult, error) {
	return a.authenticate(ctx, req, false)
}

// AuthenticateNewSession requires the presented credentials to verify
// against the user store.
func (a *Authenticator) AuthenticateNewSession(ctx context.Context, req Request) (*core.AuthenticationResult, error) {
	return a.authenticate(ctx, req, true)
}

func (a *Authenticator) authenticate(ctx context.Context, req Request, enforcePassword bool) (*core.AuthenticationResult, error) {
	user := a.resolveUser(req)
	if user == nil && enforcePassword {
		return nil, core.NewSecurityDenied("user not found")
	}

	if user != nil {
		if !a.userManager.CheckParentalSchedule(*user) {
			return nil, core.NewSecurityDenied("user is not permitted to use the server at this time")
		}
		if !a.userManager.CheckDeviceAccess(*user, req.DeviceID) {
			return nil, core.NewSecurityDenied("device is not permitted for this user")
		}
	}

	if enforcePassword {
		authed, err := a.userManager.AuthenticateUser(ctx, req.Username, req.Password, req.PasswordSHA1, req.PasswordMD5, req.RemoteEndPoint, true)
		if err != nil || authed == nil {
			a.bus.Publish(core.Event{Kind: core.EventAuthenticationFailed, At: a.now(), Username: req.Username})
			return nil, core.NewSecurityDenied("authentication failed")
		}
		user = authed
	}

	if user == nil {
		return nil, core.NewSecurityDenied("no user context to authenticate")
	}

	accessToken, err := a.mintOrReuseToken(ctx, req.DeviceID, user.ID)
	if err != nil {
		return nil, err
	}

	a.bus.Publish(core.Event{Kind: core.EventAuthenticationSucceeded, At: a.now(), Username: user.Name})

	sess, err := a.activity.LogSessionActivity(ctx, req.AppName, req.AppVersion, req.DeviceID, req.DeviceName, req.RemoteEndPoint, user)
	if err != nil {
		return nil, err
	}

	dto := sess.Snapshot()
	userDto := a.userManager.GetUserDto(*user, req.RemoteEndPoint)
	return &core.AuthenticationResult{
		User:        userDto,
		Session:     dto,
		AccessToken: accessToken,
		ServerID:    "",
	}, nil
}

func (a *Authenticator) resolveUser(req Request) *core.User {
	if req.UserID != "" {
		if u, ok := a.userManager.GetUserByID(req.UserID); ok {
			return u
		}
		return nil
	}
	if req.Username != "" {
		if u, ok := a.userManager.GetUserByName(req.Username); ok {
			return u
		}
	}
	return nil
}

// mintOrReuseToken returns an existing active token for the device/user pair
// if one exists, minting a new one only when none does.
func (a *Authenticator) mintOrReuseToken(ctx context.Context, deviceID, userID string) (string, error) {
	active := true
	existing, err := a.repo.Get(ctx, ports.AuthQuery{DeviceID: deviceID, UserID: userID, IsActive: &active, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return existing[0].AccessToken, nil
	}

	token := a.newToken()
	info := ports.AuthInfo{
		AccessToken: token,
		UserID:      userID,
		DeviceID:    deviceID,
		IsActive:    true,
		DateCreated: a.now().Unix(),
	}
	if err := a.repo.Create(ctx, info); err != nil {
		return "", err
	}
	return token, nil
}

// Logout flips the token inactive, then ends every session bound to its
// device.
func (a *Authenticator) Logout(ctx context.Context, accessToken string) error {
	rows, err := a.repo.Get(ctx, ports.AuthQuery{AccessToken: accessToken, Limit: 1})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return core.NewNotFound("access token not found")
	}
	row := rows[0]
	row.IsActive = false
	if err := a.repo.Update(ctx, row); err != nil {
		return err
	}

	for _, sess := range a.activity.SessionsByDeviceID(row.DeviceID) {
		if err := a.activity.ReportSessionEnded(ctx, sess.ID); err != nil {
			a.logger.Error("report_session_ended_failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// RevokeUserTokens logs out every other active token belonging to userID,
// leaving currentAccessToken untouched.
func (a *Authenticator) RevokeUserTokens(ctx context.Context, userID, currentAccessToken string) error {
	active := true
	rows, err := a.repo.Get(ctx, ports.AuthQuery{UserID: userID, IsActive: &active})
	if err != nil {
		return err
	}
	for _, row := range rows {
		if strings.EqualFold(row.AccessToken, currentAccessToken) {
			continue
		}
		if err := a.Logout(ctx, row.AccessToken); err != nil {
			a.logger.Error("revoke_token_failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}
	return nil
}
