package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/storage"
)

// acmeUser implements the registration user interface for ACME accounts.
type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string {
	return u.email
}

func (u *acmeUser) GetRegistration() *registration.Resource {
	return u.registration
}

func (u *acmeUser) GetPrivateKey() crypto.PrivateKey {
	return u.key
}

// LetsEncrypt is the automated-CA authority backed by ACME.
type LetsEncrypt struct {
	store    storage.Store
	dirURL   string
	domain   string
	email    string
	instance string
}

func newLetsEncrypt(env Env, domain, email, instance string) (Authority, error) {
	return &LetsEncrypt{
		store:    env.Store,
		dirURL:   env.ACMEDirectoryURL,
		domain:   domain,
		email:    email,
		instance: instance,
	}, nil
}

// client registers a fresh ACME account and returns a configured client.
func (a *LetsEncrypt) client() (*lego.Client, error) {
	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}

	user := &acmeUser{email: a.email, key: accountKey}
	cfg := lego.NewConfig(user)
	if a.dirURL != "" {
		cfg.CADirURL = a.dirURL
	}
	cfg.Certificate.KeyType = certcrypto.RSA2048

	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create acme client: %w", err)
	}

	if err := client.Challenge.SetHTTP01Provider(http01.NewProviderServer("", "80")); err != nil {
		return nil, fmt.Errorf("failed to configure http-01 challenge: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register acme account: %w", err)
	}
	user.registration = reg

	return client, nil
}

// UploadCSR is a no-op: ACME derives the request from the key and domain.
func (a *LetsEncrypt) UploadCSR(csr []byte) error {
	return nil
}

// DownloadCRT obtains a certificate for the bound domain over ACME, reusing
// the given PEM private key.
func (a *LetsEncrypt) DownloadCRT(keyPEM []byte) ([]byte, error) {
	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}

	client, err := a.client()
	if err != nil {
		return nil, err
	}

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains:    []string{a.domain},
		PrivateKey: key,
		Bundle:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate for %s: %w", a.domain, err)
	}

	acmeLog := log.WithComponent("certs")
	acmeLog.Info().
		Str("domain", a.domain).
		Str("instance", a.instance).
		Msg("Certificate obtained from ACME")

	return res.Certificate, nil
}

// Revoke revokes the instance's stored certificate with the ACME CA.
func (a *LetsEncrypt) Revoke() error {
	rec, err := a.store.GetCertificate(a.instance)
	if err != nil {
		return fmt.Errorf("no certificate to revoke for %s: %w", a.instance, err)
	}

	client, err := a.client()
	if err != nil {
		return err
	}

	if err := client.Certificate.Revoke(rec.Certificate); err != nil {
		return fmt.Errorf("failed to revoke certificate for %s: %w", a.domain, err)
	}
	return nil
}
