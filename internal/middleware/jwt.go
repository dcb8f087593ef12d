package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// Token rejection reasons carried in the error envelope.
const (
	ReasonTokenMissing = "TOKEN_MISSING"
	ReasonTokenInvalid = "TOKEN_INVALID"
	ReasonRoleUnknown  = "ROLE_UNKNOWN"
)

const codePermissionDenied = "PERMISSION_DENIED"

// classroomRoles lists the roles a classroom token may carry. Guardians only
// reach their own notifications.
var classroomRoles = map[string]struct{}{
	AuthRoleAdmin:   {},
	AuthRoleTeacher: {},
	AuthRoleStudent: {},
	"guardian":      {},
}

// JWTOptions configures bearer token validation.
type JWTOptions struct {
	Secret string
	// Issuer is enforced when set.
	Issuer string
	Leeway time.Duration
}

// JWTProtected returns a middleware that validates classroom bearer tokens and
// binds user_id and user_role to the request.
func JWTProtected(opts JWTOptions) fiber.Handler {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(opts.Issuer))
	}
	parser := jwt.NewParser(parserOptions...)
	secret := []byte(opts.Secret)

	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return unauthorized(c, "authorization header missing", ReasonTokenMissing)
		}

		const bearer = "bearer "
		if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return unauthorized(c, "invalid authorization header", ReasonTokenInvalid)
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid token", ReasonTokenInvalid)
		}

		userID := extractUserIDFromClaims(claims)
		if userID == nil || *userID == 0 {
			return unauthorized(c, "token has no subject", ReasonTokenInvalid)
		}

		role := extractUserRoleFromClaims(claims)
		if _, ok := classroomRoles[role]; !ok {
			return utils.SendErrorCode(c, fiber.StatusForbidden, "role not permitted", codePermissionDenied, ReasonRoleUnknown)
		}

		c.Locals("user_id", *userID)
		c.Locals("user_role", role)

		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message, reason string) error {
	return utils.SendErrorCode(c, fiber.StatusUnauthorized, message, codePermissionDenied, reason)
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	for _, key := range []string{"sub", "user_id"} {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint(v)) {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

// normalizeRole accepts a single role or a list and returns the first
// classroom role found.
func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := strings.ToLower(strings.TrimSpace(str))
			if _, known := classroomRoles[role]; known {
				return role
			}
		}
	}
	return ""
}
