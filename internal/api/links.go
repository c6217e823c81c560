package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"domainflip/internal/availability"
)

// DefaultPurchaseURLTemplate points at the registrar's checkout; {domain} is replaced by the name.
const DefaultPurchaseURLTemplate = "https://www.namecheap.com/domains/registration/results/?domain={domain}"

const domainPlaceholder = "{domain}"

// PurchaseLinkBuilder produces checkout links for available domains.
type PurchaseLinkBuilder interface {
	Link(domainName string) (string, error)
}

type templateLinks struct {
	template string
}

// NewPurchaseLinks validates template and returns a builder. An empty template uses the default.
func NewPurchaseLinks(template string) (PurchaseLinkBuilder, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		template = DefaultPurchaseURLTemplate
	}
	if !strings.Contains(template, domainPlaceholder) {
		return nil, fmt.Errorf("template %q lacks %s placeholder", template, domainPlaceholder)
	}
	parsed, err := url.Parse(strings.ReplaceAll(template, domainPlaceholder, "example.com"))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf("template %q must be an http(s) url", template)
	}
	return templateLinks{template: template}, nil
}

func (l templateLinks) Link(domainName string) (string, error) {
	domainName = strings.TrimSpace(domainName)
	if domainName == "" {
		return "", errors.New("empty domain")
	}
	return strings.ReplaceAll(l.template, domainPlaceholder, url.QueryEscape(domainName)), nil
}

// purchaseURL returns the checkout link for domainName. A failure is audited and yields no link.
func (s *Server) purchaseURL(ctx context.Context, domainName string) string {
	if s.links == nil {
		return ""
	}
	link, err := s.links.Link(domainName)
	if err == nil {
		return link
	}
	logrus.WithError(err).WithField("domain", domainName).Warn("build purchase link")
	if s.audit != nil {
		entry := availability.ValidationLogEntry{
			Domain:    domainName,
			Source:    availability.SourceBuyLink,
			Status:    availability.StatusError,
			Message:   err.Error(),
			CreatedAt: time.Now().UTC(),
		}
		if appendErr := s.audit.Append(context.WithoutCancel(ctx), entry); appendErr != nil {
			logrus.WithError(appendErr).Warn("append buy link audit entry")
		}
	}
	return ""
}
