package certs

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// ExternalCSR holds an uploaded signing request for out-of-band signing.
// UploadCSR persists the request on the instance's certificate record;
// DownloadCRT returns the signed certificate once an operator has attached
// it to the record.
type ExternalCSR struct {
	store    storage.Store
	domain   string
	instance string
}

func newExternalCSR(env Env, domain, email, instance string) (Authority, error) {
	return &ExternalCSR{store: env.Store, domain: domain, instance: instance}, nil
}

func (e *ExternalCSR) UploadCSR(csr []byte) error {
	rec, err := e.store.GetCertificate(e.instance)
	if errors.Is(err, storage.ErrNotFound) {
		rec = &types.CertificateRecord{
			Name:    e.instance,
			Domain:  e.domain,
			Created: time.Now().UTC(),
		}
	} else if err != nil {
		return err
	}
	rec.CSR = csr
	return e.store.PutCertificate(rec)
}

func (e *ExternalCSR) DownloadCRT(keyPEM []byte) ([]byte, error) {
	rec, err := e.store.GetCertificate(e.instance)
	if err != nil {
		return nil, fmt.Errorf("no certificate record for %s: %w", e.instance, err)
	}
	if len(rec.Certificate) == 0 {
		return nil, fmt.Errorf("certificate for %s not signed yet", e.domain)
	}
	return rec.Certificate, nil
}

// Revoke is a no-op: externally signed certificates are revoked out of band.
func (e *ExternalCSR) Revoke() error {
	return nil
}
