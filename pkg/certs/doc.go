/*
Package certs implements the certificate pipeline.

An Authority adapter is built from a string identifier and bound to one
(domain, notification email, instance) triple; it exposes UploadCSR,
DownloadCRT and Revoke. Three adapters register at construction:

  - default: a self-signed certificate (subject = issuer = domain common
    name, random 128-bit serial, SHA-256, critical CA:false)
  - le: ACME issuance and revocation through go-acme/lego with an HTTP-01
    challenge server
  - csr: an externally uploaded CSR held until signed out of band

The package also generates the RSA keys and CSRs the renewal sweep feeds
back into the download path.
*/
package certs
