package storage

import (
	"context"
	"errors"
	"testing"

	"go-pedidos/internal/config"
)

func TestObjectURL(t *testing.T) {
	got := ObjectURL("pedidos-exports", "sa-east-1", "exports/pedidos.xlsx")
	want := "https://pedidos-exports.s3.sa-east-1.amazonaws.com/exports/pedidos.xlsx"
	if got != want {
		t.Fatalf("ObjectURL = %q, want %q", got, want)
	}
}

func TestNewS3RequiresCredentials(t *testing.T) {
	_, err := NewS3(context.Background(), &config.Config{AwsRegion: "sa-east-1", BucketName: "b"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestDisabled(t *testing.T) {
	if _, err := (Disabled{}).Upload(context.Background(), "k", nil, "text/plain"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
