package tellerd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"pkt.systems/tellerd/api"
)

// dispatch is the request-scoped state resolved before the protocol server
// sees the message: the metadata tiers, the thread's authenticated customer
// id, and the registry the capability gate built for this request. It lives
// in the request context so tool handlers can reach it without any shared
// mutable state between requests.
type dispatch struct {
	correlationID string
	claims        api.Claims
	meta          api.Context
	caller        api.Caller

	// customerID is the Global-store value for the thread, empty while the
	// thread is unauthenticated. Handlers never read it directly for
	// entitlement-sensitive calls; those get it injected into arguments.
	customerID string

	registry []toolDescriptor
	method   string
	toolName string
}

func (d *dispatch) correlation() string {
	if d == nil {
		return ""
	}
	return d.correlationID
}

func (d *dispatch) threadID() string {
	if d == nil {
		return ""
	}
	return d.meta.ThreadID
}

func (d *dispatch) locale() string {
	if d == nil {
		return ""
	}
	return d.meta.Locale
}

func (d *dispatch) callerPhone() string {
	if d == nil {
		return ""
	}
	return d.caller.PhoneNumber
}

func (d *dispatch) bearerToken() string {
	if d == nil {
		return ""
	}
	return d.claims.BearerToken
}

func (d *dispatch) customer() string {
	if d == nil {
		return ""
	}
	return d.customerID
}

type dispatchContextKey struct{}

func withDispatch(ctx context.Context, d *dispatch) context.Context {
	return context.WithValue(ctx, dispatchContextKey{}, d)
}

func dispatchFrom(ctx context.Context) *dispatch {
	d, _ := ctx.Value(dispatchContextKey{}).(*dispatch)
	return d
}

// extractTiers pulls the three context tiers out of a request _meta object.
// Extraction is pure field lookup; a missing tier or field yields zero values,
// never an error. Absence only matters once a component that needs thread
// continuity is reached.
func extractTiers(meta map[string]any) (api.Claims, api.Context, api.Caller) {
	var (
		claims api.Claims
		mctx   api.Context
		caller api.Caller
	)
	if tier, ok := meta[api.MetaClaims].(map[string]any); ok {
		claims.BearerToken = stringField(tier, "bearer_token")
	}
	if tier, ok := meta[api.MetaContext].(map[string]any); ok {
		mctx.ThreadID = stringField(tier, "thread_id")
		mctx.Locale = stringField(tier, "locale")
	}
	if tier, ok := meta[api.MetaCaller].(map[string]any); ok {
		caller.PhoneNumber = stringField(tier, "phone_number")
	}
	return claims, mctx, caller
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// errNoCardClaims reports an absent or unverifiable bearer token for the
// credit-card tools.
var errNoCardClaims = errors.New("card claims unavailable")

type cardClaims struct {
	CardholderRef string `json:"cardholder_ref"`
	jwt.RegisteredClaims
}

// verifyCardClaims validates an HS256 bearer token and returns the cardholder
// reference it carries. Card tools identify the caller through these verified
// claims rather than the thread's customer id.
func verifyCardClaims(secret, bearerToken string) (cardClaims, error) {
	bearerToken = strings.TrimSpace(bearerToken)
	if bearerToken == "" || secret == "" {
		return cardClaims{}, errNoCardClaims
	}
	var claims cardClaims
	token, err := jwt.ParseWithClaims(bearerToken, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return cardClaims{}, fmt.Errorf("%w: %v", errNoCardClaims, err)
	}
	if !token.Valid || strings.TrimSpace(claims.CardholderRef) == "" {
		return cardClaims{}, errNoCardClaims
	}
	return claims, nil
}
