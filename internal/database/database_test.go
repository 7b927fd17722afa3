package database

import (
	"strings"
	"testing"

	"github.com/hydrozen/leakwatch/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "leakwatch", SSLMode: "disable"})
	want := "host=db port=5432 user=u password=p dbname=leakwatch sslmode=disable"
	if dsn != want {
		t.Fatalf("expected %q, got %q", want, dsn)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := MigrationFiles()
	if err != nil {
		t.Fatalf("MigrationFiles: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected embedded migrations, got %v", files)
	}
	for _, f := range files {
		data, err := migrations.ReadFile("migrations/" + f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", f)
		}
	}
}
