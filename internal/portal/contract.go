package portal

import (
	"fmt"
	"net/url"
	"strings"

	"regsniper/internal/config"
)

// Contract describes how the portal marks the things the agent touches.
type Contract struct {
	Host                  string
	RegistrationMarkers   []string
	IdentifierFieldPrefix string
	CommitLabel           string
	ResultsTableSelector  string
	WaitlistFieldName     string
	WaitlistValue         string
}

func ContractFromConfig(cfg config.PortalConfig) Contract {
	return Contract{
		Host:                  cfg.Host,
		RegistrationMarkers:   append([]string(nil), cfg.RegistrationMarkers...),
		IdentifierFieldPrefix: cfg.IdentifierFieldPrefix,
		CommitLabel:           cfg.CommitLabel,
		ResultsTableSelector:  cfg.ResultsTableSelector,
		WaitlistFieldName:     cfg.WaitlistFieldName,
		WaitlistValue:         cfg.WaitlistValue,
	}
}

// DefaultContract is the Minerva contract.
func DefaultContract() Contract {
	return ContractFromConfig(config.Default().Portal)
}

func (c Contract) IsRegistrationPage(pageURL string) bool {
	for _, m := range c.RegistrationMarkers {
		if m != "" && strings.Contains(pageURL, m) {
			return true
		}
	}
	return false
}

// IsPortalHost reports whether pageURL is served by the portal host or one of its subdomains.
func (c Contract) IsPortalHost(pageURL string) bool {
	want := strings.ToLower(strings.TrimSpace(c.Host))
	if want == "" || strings.TrimSpace(pageURL) == "" {
		return false
	}
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == want || strings.HasSuffix(host, "."+want)
}

func (c Contract) IdentifierFieldSelector() string {
	return fmt.Sprintf(`input[id^=%q]`, c.IdentifierFieldPrefix)
}

func (c Contract) SubmitSelector() string {
	return `input[type="submit"]`
}

func (c Contract) WaitlistSelector() string {
	return fmt.Sprintf(`select[name=%q]`, c.WaitlistFieldName)
}
