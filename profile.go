package buddyline

import (
	"encoding/json"
)

// UserProfile is a read-only projection of a BuddyPress member record. It is
// constructed only by parsing a backend response and is never mutated in
// place; updates replace the whole value.
//
// Fields the projection does not model are preserved verbatim in Extra so a
// profile survives a parse/serialize round trip without data loss.
type UserProfile struct {
	ID           int64
	Login        string
	Email        string
	DisplayName  string
	AvatarURL    string
	ProfileURL   string
	LastActivity string
	Registered   string
	Status       string
	Extra        map[string]json.RawMessage
}

// UnmarshalJSON maps BuddyPress member JSON onto the projection. DisplayName
// prefers display_name and falls back to user_nicename; the full-size avatar
// URL is lifted out of the nested avatar_urls object.
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := UserProfile{}
	takeString := func(key string, dst *string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			*dst = s
			delete(raw, key)
		}
	}

	if v, ok := raw["id"]; ok {
		var id int64
		if err := json.Unmarshal(v, &id); err == nil {
			out.ID = id
			delete(raw, "id")
		}
	}
	takeString("user_login", &out.Login)
	takeString("user_email", &out.Email)
	takeString("display_name", &out.DisplayName)
	if out.DisplayName == "" {
		takeString("user_nicename", &out.DisplayName)
	}
	takeString("link", &out.ProfileURL)
	takeString("last_activity", &out.LastActivity)
	takeString("registered", &out.Registered)
	takeString("status", &out.Status)

	if v, ok := raw["avatar_urls"]; ok {
		var urls struct {
			Full string `json:"full"`
		}
		if err := json.Unmarshal(v, &urls); err == nil && urls.Full != "" {
			out.AvatarURL = urls.Full
			delete(raw, "avatar_urls")
		}
	}

	if len(raw) > 0 {
		out.Extra = raw
	}
	*p = out
	return nil
}

// MarshalJSON serializes the projection back into BuddyPress member shape.
// Only populated fields are emitted; Extra entries are passed through
// untouched and never shadow a modeled field.
func (p UserProfile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+9)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.ID != 0 {
		out["id"] = p.ID
	}
	if p.Login != "" {
		out["user_login"] = p.Login
	}
	if p.Email != "" {
		out["user_email"] = p.Email
	}
	if p.DisplayName != "" {
		out["display_name"] = p.DisplayName
	}
	if p.ProfileURL != "" {
		out["link"] = p.ProfileURL
	}
	if p.LastActivity != "" {
		out["last_activity"] = p.LastActivity
	}
	if p.Registered != "" {
		out["registered"] = p.Registered
	}
	if p.Status != "" {
		out["status"] = p.Status
	}
	if p.AvatarURL != "" {
		out["avatar_urls"] = map[string]string{"full": p.AvatarURL}
	}
	return json.Marshal(out)
}
