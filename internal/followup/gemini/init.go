package gemini

import "recruitai/interview/internal/followup"

// Register Gemini provider on package import
func init() {
	followup.RegisterProvider("gemini", func() (followup.Provider, error) {
		config, err := NewConfig()
		if err != nil {
			return nil, err
		}
		return NewClient(config)
	})
}
