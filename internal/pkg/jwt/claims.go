// internal/pkg/jwt/claims.go
package jwt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims lists the payload fields projected into a user record.
type Claims struct {
	ID     FlexString `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Role   string     `json:"role,omitempty"`
	Avatar string     `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// FlexString accepts a JSON string or number. Backends disagree on id types.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*s = FlexString(num.String())
	return nil
}
