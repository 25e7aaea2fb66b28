package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/shopfront-backend/api/responses"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// maxAuthBody caps how much of a credentials payload is buffered to find the email.
const maxAuthBody = 16 << 10

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit is a fixed-window attempt budget for one auth surface, counted
// separately per client IP and per submitted email.
type RateLimit struct {
	Surface  string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func LoginRateLimit(cfg config.AuthRateLimitConfig) RateLimit {
	return RateLimit{Surface: "login", Window: cfg.LoginWindow, PerIP: cfg.LoginIPLimit, PerEmail: cfg.LoginEmailLimit}
}

func RegisterRateLimit(cfg config.AuthRateLimitConfig) RateLimit {
	return RateLimit{Surface: "register", Window: cfg.RegisterWindow, PerIP: cfg.RegisterIPLimit, PerEmail: cfg.RegisterEmailLimit}
}

func (l RateLimit) active() bool {
	return l.Window > 0 && (l.PerIP > 0 || l.PerEmail > 0)
}

type budget struct {
	dimension string
	scope     string
	limit     int
}

// budgets lists the counters a request draws from. The email is hashed so
// addresses never reach redis keys or logs.
func (l RateLimit) budgets(ip, email string) []budget {
	var out []budget
	if l.PerIP > 0 && ip != "" {
		out = append(out, budget{dimension: "ip", scope: l.Surface + ":ip:" + ip, limit: l.PerIP})
	}
	if l.PerEmail > 0 && email != "" {
		sum := sha256.Sum256([]byte(email))
		out = append(out, budget{dimension: "email", scope: l.Surface + ":email:" + hex.EncodeToString(sum[:]), limit: l.PerEmail})
	}
	return out
}

// AuthRateLimit rejects credential attempts with 429 once any budget for the request is spent.
func AuthRateLimit(limit RateLimit, store windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limit.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var email string
			if limit.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				email = emailFromBody(body)
			}

			for _, b := range limit.budgets(clientIP(r), email) {
				allowed, attempts, err := store.FixedWindowAllow(ctx, b.scope, int64(b.limit), limit.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"surface":   limit.Surface,
							"dimension": b.dimension,
							"attempts":  attempts,
							"limit":     b.limit,
						}), "auth attempt throttled")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop since the api runs behind a proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}
