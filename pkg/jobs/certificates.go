package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/certs"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// renewalMargin renews certificates three days before their computed
// expiry.
const renewalMargin = 3

// handleCertificateDownload issues a certificate through the selected
// authority and persists it. The instance's pending task is cleared on
// exit regardless of outcome.
func (r *Runner) handleCertificateDownload(ctx context.Context, payload CertificateDownloadPayload) error {
	certLog := log.WithInstance(payload.Name)
	defer func() {
		if err := r.deps.Store.DeleteTask(payload.Name); err != nil {
			certLog.Error().Err(err).Msg("Failed to clear pending task")
		}
	}()

	cfg := r.deps.Config
	if len(payload.ConfigOverrides) > 0 {
		cfg = cfg.Overlay(payload.ConfigOverrides)
	}

	authority, err := r.deps.Certs.New(payload.Authority, payload.Domain,
		cfg.NotificationEmail(payload.Domain), payload.Name)
	if err != nil {
		return err
	}
	if err := authority.UploadCSR(payload.CSR); err != nil {
		return fmt.Errorf("failed to upload csr for %s: %w", payload.Domain, err)
	}
	crt, err := authority.DownloadCRT(payload.Key)
	if err != nil {
		return err
	}

	record := &types.CertificateRecord{
		Name:        payload.Name,
		Domain:      payload.Domain,
		Created:     r.deps.clock(),
		Certificate: crt,
		Key:         payload.Key,
		CSR:         payload.CSR,
	}
	if err := r.deps.Store.PutCertificate(record); err != nil {
		return fmt.Errorf("failed to store certificate for %s: %w", payload.Name, err)
	}

	metrics.CertificatesIssuedTotal.WithLabelValues(payload.Authority).Inc()
	r.publish(events.EventCertIssued, "", map[string]string{
		"instance": payload.Name,
		"domain":   payload.Domain,
	})
	return nil
}

// handleCertificateRevoke revokes the instance's certificate and deletes
// the stored record. Failures are logged and returned; the pending task is
// cleared either way.
func (r *Runner) handleCertificateRevoke(ctx context.Context, payload CertificateRevokePayload) error {
	certLog := log.WithInstance(payload.Name)
	defer func() {
		if err := r.deps.Store.DeleteTask(payload.Name); err != nil {
			certLog.Error().Err(err).Msg("Failed to clear pending task")
		}
	}()

	err := func() error {
		lb, err := r.deps.Fleet.LBs.Find(ctx, payload.Name)
		if err != nil {
			return fmt.Errorf("failed to look up load balancer for %s: %w", payload.Name, err)
		}
		if lb == nil {
			return fmt.Errorf("%w: %s", ErrInstanceNotFound, payload.Name)
		}

		authority, err := r.deps.Certs.New(payload.Authority, payload.Domain,
			r.deps.Config.NotificationEmail(payload.Domain), payload.Name)
		if err != nil {
			return err
		}
		if err := authority.Revoke(); err != nil {
			return err
		}
		return r.deps.Store.DeleteCertificate(payload.Name)
	}()
	if err != nil {
		certLog.Error().Err(err).Msg("Error in certificate authority task")
		return err
	}

	r.publish(events.EventCertRevoked, "", map[string]string{
		"instance": payload.Name,
		"domain":   payload.Domain,
	})
	return nil
}

// handleCertificateRenewalSweep re-enqueues a download job for every
// certificate old enough to need renewal, with a fresh key and CSR and the
// instance's plan configuration overlaid. A failed renewal leaves the
// record due again on the next sweep.
func (r *Runner) handleCertificateRenewalSweep(ctx context.Context) error {
	cfg := r.deps.Config
	limit := r.deps.clock().Add(-time.Duration(cfg.LECertExpirationDays-renewalMargin) * 24 * time.Hour)

	records, err := r.deps.Store.ListCertificates()
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.Created.After(limit) {
			continue
		}
		if err := r.renewCertificate(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// renewCertificate queues one renewal.
func (r *Runner) renewCertificate(ctx context.Context, record *types.CertificateRecord) error {
	var overrides map[string]string
	instance, err := r.deps.Store.GetInstance(record.Name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if instance != nil && instance.PlanName != "" {
		plan, err := r.deps.Store.GetPlan(instance.PlanName)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if plan != nil {
			overrides = plan.Config
		}
	}

	key, err := certs.GenerateKey()
	if err != nil {
		return err
	}
	csr, err := certs.GenerateCSR(key, record.Domain)
	if err != nil {
		return err
	}

	job, err := NewJob(JobCertificateDownload, CertificateDownloadPayload{
		Name:            record.Name,
		Authority:       "le",
		CSR:             csr,
		Key:             key,
		Domain:          record.Domain,
		ConfigOverrides: overrides,
	})
	if err != nil {
		return err
	}
	if err := r.deps.Queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue renewal for %s: %w", record.Name, err)
	}

	metrics.CertificatesRenewalsQueued.Inc()
	r.publish(events.EventCertRenewalQueued, "", map[string]string{
		"instance": record.Name,
		"domain":   record.Domain,
	})
	return nil
}
