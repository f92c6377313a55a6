package payment

import (
	"context"
	"fmt"
	"github.com/rookgm/reviewmart/internal/models"
	"strings"
)

// settings keys
const (
	razorpayPrefix      = "razorpay_"
	payuPrefix          = "payu_"
	settingEnabled      = "enabled"
	settingTestMode     = "test_mode"
	settingKeyID        = "key_id"
	settingKeySecret    = "key_secret"
	settingMerchantKey  = "merchant_key"
	settingMerchantSalt = "merchant_salt"
)

// SettingsReader reads opaque key/value settings
type SettingsReader interface {
	GetSettingsByPrefix(ctx context.Context, prefix string) (map[string]string, error)
}

// GatewayInfo describes gateway for selection lists
type GatewayInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// Endpoints overrides gateway URLs, empty values keep defaults
type Endpoints struct {
	RazorpayAPIURL string
	PayUPaymentURL string
	PayUInfoURL    string
}

type gatewayDef struct {
	info   GatewayInfo
	prefix string
}

var gateways = []gatewayDef{
	{info: GatewayInfo{Code: GatewayRazorpay, DisplayName: "Razorpay"}, prefix: razorpayPrefix},
	{info: GatewayInfo{Code: GatewayPayU, DisplayName: "PayUmoney"}, prefix: payuPrefix},
}

// Factory builds gateways from current settings. Settings are read on every call.
type Factory struct {
	settings  SettingsReader
	endpoints Endpoints
	opts      []Option
}

// NewFactory creates new Factory instance
func NewFactory(settings SettingsReader, endpoints Endpoints, opts ...Option) *Factory {
	return &Factory{
		settings:  settings,
		endpoints: endpoints,
		opts:      opts,
	}
}

// parseFlag coerces stored flag value to bool
func parseFlag(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

func lookup(name string) (gatewayDef, bool) {
	for _, g := range gateways {
		if g.info.Code == name {
			return g, true
		}
	}
	return gatewayDef{}, false
}

// razorpayConfig maps razorpay_* settings
func razorpayConfig(settings map[string]string) RazorpayConfig {
	return RazorpayConfig{
		KeyID:     strings.TrimSpace(settings[razorpayPrefix+settingKeyID]),
		KeySecret: strings.TrimSpace(settings[razorpayPrefix+settingKeySecret]),
		TestMode:  parseFlag(settings[razorpayPrefix+settingTestMode]),
	}
}

// payuConfig maps payu_* settings
func payuConfig(settings map[string]string) PayUConfig {
	return PayUConfig{
		MerchantKey:  strings.TrimSpace(settings[payuPrefix+settingMerchantKey]),
		MerchantSalt: strings.TrimSpace(settings[payuPrefix+settingMerchantSalt]),
		TestMode:     parseFlag(settings[payuPrefix+settingTestMode]),
	}
}

// GetGateway returns enabled and configured gateway by name
func (f *Factory) GetGateway(ctx context.Context, name string) (Gateway, error) {
	def, ok := lookup(name)
	if !ok {
		return nil, models.ErrUnsupportedGateway
	}

	settings, err := f.settings.GetSettingsByPrefix(ctx, def.prefix)
	if err != nil {
		return nil, fmt.Errorf("read %s settings: %w", name, err)
	}
	if !parseFlag(settings[def.prefix+settingEnabled]) {
		return nil, models.ErrGatewayDisabled
	}

	switch name {
	case GatewayRazorpay:
		cfg := razorpayConfig(settings)
		cfg.BaseURL = f.endpoints.RazorpayAPIURL
		gw, err := NewRazorpay(cfg, f.opts...)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		cfg := payuConfig(settings)
		cfg.PaymentURL = f.endpoints.PayUPaymentURL
		cfg.InfoURL = f.endpoints.PayUInfoURL
		gw, err := NewPayU(cfg, f.opts...)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
}

// ListAvailableGateways returns enabled gateways
func (f *Factory) ListAvailableGateways(ctx context.Context) ([]GatewayInfo, error) {
	available := []GatewayInfo{}

	for _, g := range gateways {
		settings, err := f.settings.GetSettingsByPrefix(ctx, g.prefix)
		if err != nil {
			return nil, fmt.Errorf("read %s settings: %w", g.info.Code, err)
		}
		if parseFlag(settings[g.prefix+settingEnabled]) {
			available = append(available, g.info)
		}
	}

	return available, nil
}
