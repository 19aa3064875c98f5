package serverutils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TicketClaims is the payload of a short-lived stream ticket. Browsers
// cannot set headers on WebSocket upgrades, so clients fetch a ticket over
// HTTP and pass it as a query parameter instead.
type TicketClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func IssueStreamTicket(secret, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseStreamTicket verifies the ticket and returns the session id it was
// issued for.
func ParseStreamTicket(secret, ticket string) (string, error) {
	token, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid stream ticket")
	}
	if claims.SessionID == "" {
		return "", fmt.Errorf("stream ticket missing session id")
	}
	return claims.SessionID, nil
}
