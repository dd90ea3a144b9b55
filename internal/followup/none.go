package followup

import "context"

// noopProvider never proposes a follow-up. Used when dynamic follow-ups
// are disabled for a tenant.
type noopProvider struct{}

func (noopProvider) GenerateFollowUp(ctx context.Context, req Request) (string, error) {
	return "", nil
}

func (noopProvider) GetProviderName() string { return "none" }

func init() {
	RegisterProvider("none", func() (Provider, error) { return noopProvider{}, nil })
}
