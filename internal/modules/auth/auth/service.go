package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/modules/system/loginlog"
	"github.com/dvinyl/core/internal/pkg/geo"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/throttle"
	"go.uber.org/zap"
)

type Verifier interface {
	Verify(ctx context.Context, email, password string) (*models.UserModel, error)
}

type Recorder interface {
	Record(ctx context.Context, e loginlog.Entry) error
}

type Signer interface {
	SignSince(userID string, since time.Time) (string, error)
}

// Service runs the login sequence: throttle check, credential check,
// audit entry, token.
type Service struct {
	users    Verifier
	throttle throttle.Throttle
	tokens   Signer
	logs     Recorder
	geo      geo.Locator
	log      *zap.Logger
}

type Option func(*Service)

func WithLocator(l geo.Locator) Option {
	return func(s *Service) {
		if l != nil {
			s.geo = l
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("auth")
		}
	}
}

func NewService(users Verifier, th throttle.Throttle, tokens Signer, logs Recorder, opts ...Option) *Service {
	s := &Service{
		users:    users,
		throttle: th,
		tokens:   tokens,
		logs:     logs,
		geo:      geo.Nop{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login returns *RateLimitedError while blocked, an error wrapping
// user.ErrInvalidCredential on bad credentials, or the signed token.
// A blocked identifier is rejected before the credential store is read.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	key := throttle.Key(in.Email)

	st, err := s.throttle.Check(ctx, key)
	if err != nil {
		s.log.Warn("throttle check failed, continuing", zap.Error(err))
	} else if st.Blocked {
		return nil, &RateLimitedError{Status: st}
	}

	u, err := s.users.Verify(ctx, in.Email, in.Password)
	if err != nil {
		if !errors.Is(err, user.ErrInvalidCredential) {
			return nil, err
		}
		s.record(ctx, in, nil, models.LoginStatusFailed)
		st, terr := s.throttle.RecordFailure(ctx, key)
		if terr != nil {
			s.log.Warn("throttle record failed", zap.Error(terr))
			return nil, err
		}
		if st.Blocked {
			s.log.Info("login blocked", zap.String("ip", in.IP), zap.Int("failures", st.Failures))
			return nil, &RateLimitedError{Status: st, Fresh: true}
		}
		return nil, err
	}

	token, err := s.tokens.SignSince(u.ID, u.LastChange)
	if err != nil {
		return nil, err
	}
	if err := s.throttle.RecordSuccess(ctx, key); err != nil {
		s.log.Warn("throttle reset failed", zap.Error(err))
	}
	s.record(ctx, in, u, models.LoginStatusSuccess)
	return &LoginResult{User: u, Token: token}, nil
}

// record writes the audit entry. A failed write never fails the login.
func (s *Service) record(ctx context.Context, in LoginInput, u *models.UserModel, status string) {
	loc := s.geo.Lookup(in.IP)
	if loc.City == "" {
		loc.City = i18n.T(in.Locale, i18n.CommonUnknown)
	}
	e := loginlog.Entry{
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		IP:        in.IP,
		Country:   loc.Country,
		City:      loc.City,
		UserAgent: in.UserAgent,
		Status:    status,
	}
	if u != nil {
		e.UserID = u.ID
		e.Username = u.Username
		e.Email = u.Email
	}
	if err := s.logs.Record(ctx, e); err != nil {
		s.log.Error("write login log failed", zap.String("status", status), zap.Error(err))
	}
}
