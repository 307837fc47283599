package mqtt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
)

// writeCert writes a self-signed certificate and its key into dir.
func writeCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "tenant-a"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "certificate.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestNewTLSConfig(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeCert(t, dir)
	notPEM := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(notPEM, []byte("# not a certificate"), 0o600))

	tests := []struct {
		name       string
		cfg        config.MQTTConfig
		wantErr    bool
		wantCA     bool
		wantClient bool
		wantSkip   bool
	}{
		{name: "no files", cfg: config.MQTTConfig{TLSEnabled: true}},
		{name: "CA only", cfg: config.MQTTConfig{TLSEnabled: true, CACert: cert}, wantCA: true},
		{name: "CA and client", cfg: config.MQTTConfig{TLSEnabled: true, CACert: cert, ClientCert: cert, ClientKey: key}, wantCA: true, wantClient: true},
		{name: "client only", cfg: config.MQTTConfig{TLSEnabled: true, ClientCert: cert, ClientKey: key}, wantClient: true},
		{name: "insecure skip", cfg: config.MQTTConfig{TLSEnabled: true, InsecureSkip: true}, wantSkip: true},
		{name: "missing CA", cfg: config.MQTTConfig{TLSEnabled: true, CACert: "/nonexistent/ca.crt"}, wantErr: true},
		{name: "corrupted CA", cfg: config.MQTTConfig{TLSEnabled: true, CACert: notPEM}, wantErr: true},
		{name: "missing client pair", cfg: config.MQTTConfig{TLSEnabled: true, ClientCert: "/nonexistent/c.crt", ClientKey: "/nonexistent/c.key"}, wantErr: true},
		{name: "mismatched key", cfg: config.MQTTConfig{TLSEnabled: true, ClientCert: cert, ClientKey: "/nonexistent/key.pem"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tlsConfig, err := newTLSConfig(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCA, tlsConfig.RootCAs != nil)
			assert.Equal(t, tt.wantClient, len(tlsConfig.Certificates) == 1)
			assert.Equal(t, tt.wantSkip, tlsConfig.InsecureSkipVerify)
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &config.MQTTConfig{
		Broker:         "tcp://broker.local:1883",
		ClientID:       "resequencer-0",
		ConnectTimeout: 2 * time.Second,
	}

	opts, err := clientOptions(cfg, log.NewDiscard())
	require.NoError(t, err)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker.local:1883", opts.Servers[0].Host)
	assert.Equal(t, "resequencer-0", opts.ClientID)
	assert.True(t, opts.Order, "a mirror connection must keep publish order")
	assert.True(t, opts.AutoReconnect)

	cfg.TLSEnabled = true
	cfg.CACert = "/nonexistent/ca.crt"
	_, err = clientOptions(cfg, log.NewDiscard())
	assert.Error(t, err)
}
