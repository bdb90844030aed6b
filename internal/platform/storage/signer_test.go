package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
)

func TestServiceAccountSignerFromInlineJSON(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	payload, _ := json.Marshal(map[string]string{
		"client_email": "orders@glass.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})

	signer, err := NewServiceAccountSigner(string(payload), "")
	if err != nil {
		t.Fatalf("NewServiceAccountSigner: %v", err)
	}
	if signer.Email() != "orders@glass.iam.gserviceaccount.com" {
		t.Fatalf("unexpected email %s", signer.Email())
	}
	sig, err := signer.SignBytes(context.Background(), []byte("payload"))
	if err != nil || len(sig) == 0 {
		t.Fatalf("expected signature, got %v", err)
	}
}

func TestServiceAccountSignerNotConfigured(t *testing.T) {
	signer, err := NewServiceAccountSigner("", "")
	if err != nil || signer != nil {
		t.Fatalf("expected nil signer without configuration, got %v %v", signer, err)
	}
	if _, err := NewServiceAccountSigner(`{"client_email":"a@b"}`, ""); err == nil {
		t.Fatalf("expected missing private key to fail")
	}
}
