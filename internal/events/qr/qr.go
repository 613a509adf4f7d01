// Package qr renders the walk-up registration code printed at an event venue.
package qr

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Generator struct {
	baseURL string
	size    int
}

func NewGenerator(publicBaseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		size:    DefaultSize,
	}
}

// RegistrationURL is the on-site registration endpoint of eventID.
func (g *Generator) RegistrationURL(eventID int64) string {
	q := url.Values{}
	q.Set("onsite", "1")
	return fmt.Sprintf("%s/api/events/%d/register?%s", g.baseURL, eventID, q.Encode())
}

// OnsitePNG encodes RegistrationURL as a PNG.
func (g *Generator) OnsitePNG(eventID int64) ([]byte, error) {
	if eventID <= 0 {
		return nil, fmt.Errorf("invalid event id %d", eventID)
	}
	return qrcode.Encode(g.RegistrationURL(eventID), qrcode.Medium, g.size)
}
