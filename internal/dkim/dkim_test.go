package dkim

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateSaveLoadSign(t *testing.T) {
	kp, err := GenerateKey("example.com", "outreach")
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	keyPath := filepath.Join(t.TempDir(), "keys", "dkim.pem")
	if err := kp.SavePrivateKey(keyPath); err != nil {
		t.Fatalf("SavePrivateKey() error = %v", err)
	}

	signer, err := NewSignerFromFile(keyPath, "example.com", "outreach")
	if err != nil {
		t.Fatalf("NewSignerFromFile() error = %v", err)
	}
	if signer.Domain() != "example.com" || signer.Selector() != "outreach" {
		t.Errorf("signer identity = %s/%s", signer.Domain(), signer.Selector())
	}

	msg := []byte("From: me@example.com\r\nTo: you@other.org\r\nSubject: hello\r\n\r\nbody\r\n")
	signed, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !strings.Contains(string(signed), "DKIM-Signature:") {
		t.Error("signed message missing DKIM-Signature header")
	}
	if !strings.Contains(string(signed), "body") {
		t.Error("signed message lost its body")
	}
}

func TestDNSRecord(t *testing.T) {
	kp, err := GenerateKey("example.com", "outreach")
	if err != nil {
		t.Fatal(err)
	}

	if got := kp.DNSName(); got != "outreach._domainkey.example.com" {
		t.Errorf("DNSName() = %s", got)
	}
	record := kp.DNSRecord()
	if !strings.HasPrefix(record, "v=DKIM1; k=rsa; p=") {
		t.Errorf("DNSRecord() = %s", record)
	}
}

func TestLoadPrivateKey_Invalid(t *testing.T) {
	if _, err := LoadPrivateKey(filepath.Join(t.TempDir(), "absent.pem")); err == nil {
		t.Error("LoadPrivateKey() expected error for missing file")
	}
}
