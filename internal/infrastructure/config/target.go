package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/crypto"
)

// Decrypter reveals "enc:" values; *crypto.AEAD satisfies it.
type Decrypter interface {
	Reveal(v string) (string, error)
}

// TargetFile is the on-disk booking request:
//
//	offering: /fui-hui-hua/search
//	party_size: 4
//	time_preferences: ["7:00 PM", "7:30 PM"]
//	excluded_days: ["March 3, 2025"]
//	patron:
//	  email: me@example.com
//	  password: enc:...
//	  payment_verification_code: enc:...
//	watch:
//	  release_date: 2025-02-01
//	  release_time: "10:00"
//	  timezone: America/Chicago
//	  lead: 1m
//	  length: 15m
type TargetFile struct {
	reservation.Target `yaml:",inline"`
	Patron             reservation.Patron `yaml:"patron"`
	Watch              *WatchSpec         `yaml:"watch"`
}

// WatchSpec describes the release window used by `tockbook watch`.
type WatchSpec struct {
	ReleaseDate string `yaml:"release_date"`
	ReleaseTime string `yaml:"release_time"`
	Timezone    string `yaml:"timezone"`
	Lead        string `yaml:"lead"`
	Length      string `yaml:"length"`
}

// LoadTarget reads a target file, applies TOCK_EMAIL, TOCK_PASSWORD and
// TOCK_CVV overrides, reveals sealed values with dec (may be nil when no
// value is sealed) and validates the result. Every failure wraps
// reservation.ErrConfiguration.
func LoadTarget(path string, dec Decrypter) (TargetFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return TargetFile{}, fmt.Errorf("%w: open target: %v", reservation.ErrConfiguration, err)
	}
	defer f.Close()
	return ParseTarget(f, dec)
}

func ParseTarget(r io.Reader, dec Decrypter) (TargetFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return TargetFile{}, fmt.Errorf("%w: read target: %v", reservation.ErrConfiguration, err)
	}

	var tf TargetFile
	d := yaml.NewDecoder(bytes.NewReader(raw))
	d.KnownFields(true)
	if err := d.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
		return TargetFile{}, fmt.Errorf("%w: parse target: %v", reservation.ErrConfiguration, err)
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"TOCK_EMAIL", &tf.Patron.Email},
		{"TOCK_PASSWORD", &tf.Patron.Password},
		{"TOCK_CVV", &tf.Patron.PaymentVerificationCode},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(v) != "" {
			*o.dst = v
		}
	}

	secrets := []struct {
		name string
		dst  *string
	}{
		{"email", &tf.Patron.Email},
		{"password", &tf.Patron.Password},
		{"payment_verification_code", &tf.Patron.PaymentVerificationCode},
	}
	for _, s := range secrets {
		if !crypto.IsSealed(*s.dst) {
			continue
		}
		if dec == nil {
			return TargetFile{}, fmt.Errorf("%w: patron %s is sealed but no MASTER_KEY is set", reservation.ErrConfiguration, s.name)
		}
		v, err := dec.Reveal(*s.dst)
		if err != nil {
			return TargetFile{}, fmt.Errorf("%w: patron %s: %v", reservation.ErrConfiguration, s.name, err)
		}
		*s.dst = v
	}

	if err := errors.Join(tf.Target.Validate(), tf.Patron.Validate()); err != nil {
		return TargetFile{}, err
	}
	return tf, nil
}
