package keypair

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/pkg/errors"
	"github.com/youmark/pkcs8"
)

// Key is a decrypted RSA private key together with its unencrypted PKCS#8 DER encoding,
// which is the form warehouse drivers expect for key-pair authentication.
type Key struct {
	Private *rsa.PrivateKey
	DER     []byte
}

// PEM returns the key as an unencrypted "PRIVATE KEY" PEM block.
func (k *Key) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: k.DER})
}

// LoadFile reads a PEM private key from path and decrypts it with passphrase.
func LoadFile(path, passphrase string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "keypair: reading %s", path)
	}
	return Parse(data, []byte(passphrase))
}

// Parse decodes the first PEM block in data. Encrypted PKCS#8, plain PKCS#8 and
// PKCS#1 (optionally with a legacy Proc-Type encryption header) are accepted.
func Parse(data, passphrase []byte) (*Key, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("keypair: no PEM block found")
	}

	var (
		parsed interface{}
		err    error
	)
	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		if len(passphrase) == 0 {
			return nil, errors.New("keypair: key is encrypted but no passphrase was given")
		}
		parsed, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, passphrase)
		if err != nil {
			return nil, errors.Wrap(err, "keypair: decrypting PKCS#8 key (bad passphrase?)")
		}
	case "PRIVATE KEY":
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "keypair: parsing PKCS#8 key")
		}
	case "RSA PRIVATE KEY":
		der := block.Bytes
		//nolint:staticcheck // legacy OpenSSL-encrypted keys are still in circulation
		if x509.IsEncryptedPEMBlock(block) {
			der, err = x509.DecryptPEMBlock(block, passphrase)
			if err != nil {
				return nil, errors.Wrap(err, "keypair: decrypting PKCS#1 key")
			}
		}
		parsed, err = x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, errors.Wrap(err, "keypair: parsing PKCS#1 key")
		}
	default:
		return nil, errors.Errorf("keypair: unsupported PEM block %q", block.Type)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("keypair: expected an RSA key, got %T", parsed)
	}

	der, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		return nil, errors.Wrap(err, "keypair: encoding PKCS#8")
	}

	return &Key{Private: rsaKey, DER: der}, nil
}
