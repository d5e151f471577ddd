package vehicle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/logger"
)

type stubSource struct {
	decodeCalls  int
	fitmentCalls int
	result       *VINResult
	sizes        []TireSize
	err          error
	configured   bool
}

func (s *stubSource) DecodeVIN(ctx context.Context, vin string) (*VINResult, error) {
	s.decodeCalls++
	return s.result, s.err
}

func (s *stubSource) FitmentConfigured() bool { return s.configured }

func (s *stubSource) TireFitment(ctx context.Context, vehicleMake, model, year string) ([]TireSize, error) {
	s.fitmentCalls++
	return s.sizes, s.err
}

func newCachedService(t *testing.T, source *stubSource) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return NewService(source, cache, time.Hour, logger.New("test")), mr
}

const testVIN = "1HGCM82633A004352"

func TestDecodeVINRejectsMalformedInput(t *testing.T) {
	source := &stubSource{}
	svc := NewService(source, nil, time.Hour, logger.New("test"))

	for _, vin := range []string{"", "SHORT", "1HGCM82633A00435Q", "1HGCM82633A0043521"} {
		_, err := svc.DecodeVIN(context.Background(), vin)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
			t.Errorf("DecodeVIN(%q) error = %v, want validation error", vin, err)
		}
	}
	if source.decodeCalls != 0 {
		t.Errorf("provider should not be called for malformed VINs, got %d calls", source.decodeCalls)
	}
}

func TestDecodeVINNormalizesCase(t *testing.T) {
	source := &stubSource{result: &VINResult{VIN: testVIN, Make: "HONDA", Model: "Accord", ModelYear: "2003"}}
	svc := NewService(source, nil, time.Hour, logger.New("test"))

	got, err := svc.DecodeVIN(context.Background(), " 1hgcm82633a004352 ")
	if err != nil {
		t.Fatalf("DecodeVIN returned error: %v", err)
	}
	if got.Make != "HONDA" {
		t.Errorf("Make = %q, want HONDA", got.Make)
	}
}

func TestDecodeVINUnknownVehicleIsNotFound(t *testing.T) {
	source := &stubSource{result: nil}
	svc := NewService(source, nil, time.Hour, logger.New("test"))

	_, err := svc.DecodeVIN(context.Background(), testVIN)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("error = %v, want not-found", err)
	}
}

func TestDecodeVINUsesCacheOnSecondLookup(t *testing.T) {
	source := &stubSource{result: &VINResult{VIN: testVIN, Make: "HONDA", Model: "Accord", ModelYear: "2003"}}
	svc, _ := newCachedService(t, source)

	for i := 0; i < 3; i++ {
		got, err := svc.DecodeVIN(context.Background(), testVIN)
		if err != nil {
			t.Fatalf("lookup %d returned error: %v", i, err)
		}
		if got.Model != "Accord" {
			t.Errorf("lookup %d Model = %q, want Accord", i, got.Model)
		}
	}
	if source.decodeCalls != 1 {
		t.Errorf("provider calls = %d, want 1 (cache should serve repeats)", source.decodeCalls)
	}
}

func TestDecodeVINCacheExpiryHitsProviderAgain(t *testing.T) {
	source := &stubSource{result: &VINResult{VIN: testVIN, Make: "HONDA"}}
	svc, mr := newCachedService(t, source)

	if _, err := svc.DecodeVIN(context.Background(), testVIN); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := svc.DecodeVIN(context.Background(), testVIN); err != nil {
		t.Fatal(err)
	}

	if source.decodeCalls != 2 {
		t.Errorf("provider calls = %d, want 2 after TTL expiry", source.decodeCalls)
	}
}

func TestTireSizesRequiresConfiguredProvider(t *testing.T) {
	svc := NewService(&stubSource{configured: false}, nil, time.Hour, logger.New("test"))

	_, err := svc.TireSizes(context.Background(), "Honda", "Accord", "2003")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("error = %v, want not-found when fitment provider is absent", err)
	}
}

func TestTireSizesValidatesQuery(t *testing.T) {
	svc := NewService(&stubSource{configured: true}, nil, time.Hour, logger.New("test"))

	cases := [][3]string{
		{"", "Accord", "2003"},
		{"Honda", "", "2003"},
		{"Honda", "Accord", "03"},
	}
	for _, tc := range cases {
		_, err := svc.TireSizes(context.Background(), tc[0], tc[1], tc[2])
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
			t.Errorf("TireSizes(%v) error = %v, want validation error", tc, err)
		}
	}
}

func TestTireSizesCachesCaseInsensitively(t *testing.T) {
	source := &stubSource{
		configured: true,
		sizes:      []TireSize{{Size: "205/60R16", Position: "all"}},
	}
	svc, _ := newCachedService(t, source)

	if _, err := svc.TireSizes(context.Background(), "Honda", "Accord", "2003"); err != nil {
		t.Fatal(err)
	}
	got, err := svc.TireSizes(context.Background(), "HONDA", "ACCORD", "2003")
	if err != nil {
		t.Fatal(err)
	}

	if source.fitmentCalls != 1 {
		t.Errorf("provider calls = %d, want 1", source.fitmentCalls)
	}
	if len(got) != 1 || got[0].Size != "205/60R16" {
		t.Errorf("unexpected sizes from cache: %+v", got)
	}
}

func TestTireSizesEmptyResultIsNotAnError(t *testing.T) {
	svc := NewService(&stubSource{configured: true, sizes: nil}, nil, time.Hour, logger.New("test"))

	got, err := svc.TireSizes(context.Background(), "Honda", "Accord", "2003")
	if err != nil {
		t.Fatalf("TireSizes returned error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", got)
	}
}
