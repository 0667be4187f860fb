package manager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type hostStatRequest struct {
	Action string `json:"a"`
	Source int    `json:"src"`
	UserID int64  `json:"uID"`
	User   string `json:"usr"`
	Mode   string `json:"mode"`
	Nick   string `json:"nick"`
	Time   int64  `json:"time"`
}

type commandEnvelope struct {
	M struct {
		Req hostStatRequest `json:"req"`
	} `json:"m"`
}

// BuildCommand encodes a host_stat request that sets the hub to mode
// ("d", "h" or "a") on behalf of the account.
func BuildCommand(email string, profile map[string]any, mode string, now time.Time) ([]byte, error) {
	var env commandEnvelope
	env.M.Req = hostStatRequest{
		Action: "host_stat",
		Source: 0,
		UserID: profileUserID(profile),
		User:   email,
		Mode:   mode,
		Nick:   profileNick(profile, email),
		Time:   now.Unix(),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// profileUserID returns the first usable numeric id among the profile
// keys the cloud has been seen to use, or 0.
func profileUserID(profile map[string]any) int64 {
	for _, key := range []string{"userId", "userID", "uid", "id"} {
		switch v := profile[key].(type) {
		case float64:
			if v != 0 {
				return int64(v)
			}
		case int64:
			if v != 0 {
				return v
			}
		case int:
			if v != 0 {
				return int64(v)
			}
		case json.Number:
			if n, err := v.Int64(); err == nil && n != 0 {
				return n
			}
		case string:
			if v == "" {
				continue
			}
			// A present but non-numeric id yields 0 rather than a later key.
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}

func profileNick(profile map[string]any, email string) string {
	for _, key := range []string{"nick", "alias", "userName", "username"} {
		if s, ok := profile[key].(string); ok && s != "" {
			return s
		}
	}
	if local, _, ok := strings.Cut(email, "@"); ok {
		return local
	}
	return ""
}
