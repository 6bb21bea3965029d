package profilecache

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/backoffice-session/profiles"
)

func marshalProfile(p *profiles.Profile) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("cache profile: %w", err)
	}
	return json.Marshal(p)
}
