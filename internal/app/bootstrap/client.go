package bootstrap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/careportal-chat/internal/booking"
	"github.com/wolfman30/careportal-chat/internal/chat"
	appconfig "github.com/wolfman30/careportal-chat/internal/config"
	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/payments"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/internal/wizard"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// ClientDeps are the runtime resources the terminal client runs on.
type ClientDeps struct {
	Snapshots chat.SnapshotStore
	Registry  prometheus.Registerer
	// CheckoutIn and CheckoutOut back the provider checkout prompt.
	CheckoutIn  io.Reader
	CheckoutOut io.Writer
	// FamilyMembers back patient selectors the portal sends without a
	// patient list.
	FamilyMembers []booking.FamilyMember
}

// LoadFamilyMembers reads a JSON array of family members. An empty path
// yields no members.
func LoadFamilyMembers(path string) ([]booking.FamilyMember, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read family members: %w", err)
	}
	var members []booking.FamilyMember
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("bootstrap: parse family members %s: %w", path, err)
	}
	out := members[:0]
	for _, m := range members {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// BuildPortalClient returns the portal API client. A configured CSRF_TOKEN
// is used as is; otherwise the token is read from the conversation's chat
// page over the client's own cookie jar.
func BuildPortalClient(cfg *appconfig.Config, conversationID string, m *metrics.ClientMetrics, logger *logging.Logger) (*portalapi.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("bootstrap: conversation id is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	hc := portalapi.NewHTTPClient(cfg.RequestTimeout)
	var tokens portalapi.TokenSource
	if token := strings.TrimSpace(cfg.CSRFToken); token != "" {
		tokens = portalapi.StaticTokenSource(token)
	} else {
		pageURL := cfg.PortalBaseURL + cfg.PagePath(conversationID)
		tokens = portalapi.NewMetaTokenSource(pageURL, hc)
		logger.Debug("csrf token from chat page", "url", pageURL)
	}
	return portalapi.NewClient(cfg.PortalBaseURL, tokens, logger,
		portalapi.WithHTTPClient(hc),
		portalapi.WithMetrics(m),
	), nil
}

// BuildController wires the conversation controller with payments, the
// member wizard factory and snapshot resume.
func BuildController(cfg *appconfig.Config, conversationID string, deps ClientDeps, logger *logging.Logger) (*chat.Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	var clientMetrics *metrics.ClientMetrics
	if deps.Registry != nil {
		clientMetrics = metrics.NewClientMetrics(deps.Registry)
	}

	client, err := BuildPortalClient(cfg, conversationID, clientMetrics, logger.With("component", "portalapi"))
	if err != nil {
		return nil, err
	}

	var checkout payments.Checkout
	if deps.CheckoutIn != nil && deps.CheckoutOut != nil {
		checkout = payments.NewPromptCheckout(deps.CheckoutIn, deps.CheckoutOut)
	}
	flow := payments.NewFlow(client, checkout, cfg.CheckoutMode, logger.With("component", "payments"))

	wizardLogger := logger.With("component", "wizard")
	newWizard := func(onComplete func(selection.Selection), onCancel func()) *wizard.Wizard {
		return wizard.New(client, onComplete, onCancel,
			wizard.WithSuccessDelay(cfg.LinkSuccessDelay),
			wizard.WithLogger(wizardLogger),
		)
	}

	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithMetrics(clientMetrics),
		chat.WithWidgetContext(widgetContext(cfg, deps, flow, newWizard)),
	}
	if deps.Snapshots != nil {
		opts = append(opts, chat.WithSnapshots(deps.Snapshots))
	}
	logger.Info("conversation client ready",
		"family_members", len(deps.FamilyMembers),
		"portal", cfg.PortalBaseURL,
		"conversation_id", conversationID,
		"checkout_mode", cfg.CheckoutMode,
	)
	return chat.NewController(client, conversationID, opts...), nil
}

func widgetContext(cfg *appconfig.Config, deps ClientDeps, flow *payments.Flow, newWizard func(func(selection.Selection), func()) *wizard.Wizard) widgets.Context {
	return widgets.Context{
		DefaultPatientID: cfg.DefaultPatientID,
		FamilyMembers:    append([]booking.FamilyMember(nil), deps.FamilyMembers...),
		Payments:         flow,
		NewWizard:        newWizard,
		Now:              time.Now,
	}
}
