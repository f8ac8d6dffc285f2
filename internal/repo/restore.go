package repo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/idemproxy/internal/keys"
	"github.com/roach88/idemproxy/internal/model"
)

// RestoreReport summarizes what Restore loaded.
type RestoreReport struct {
	CurrentFingerprints int `json:"current_fingerprints" yaml:"current_fingerprints"`
	DefaultFingerprints int `json:"default_fingerprints" yaml:"default_fingerprints"`
	Owners              int `json:"owners" yaml:"owners"`
	HardwareDefaults    int `json:"hardware_defaults" yaml:"hardware_defaults"`
	DefaultSnapshots    int `json:"default_snapshots" yaml:"default_snapshots"`
	Objects             int `json:"objects" yaml:"objects"`

	// Skipped lists persisted entries that did not parse.
	Skipped []string `json:"skipped" yaml:"skipped"`

	// Ambiguous lists fingerprints resolving to more than one object of the
	// same type.
	Ambiguous []Ambiguity `json:"ambiguous" yaml:"ambiguous"`
}

// Ambiguity is a fingerprint shared by several objects of one type.
type Ambiguity struct {
	Fingerprint string   `json:"fingerprint" yaml:"fingerprint"`
	Type        string   `json:"type" yaml:"type"`
	Objects     []string `json:"objects" yaml:"objects"`
}

// Restore rebuilds every table from the persisted keyspace. Entries that do
// not parse are logged and skipped; store errors abort the load and leave
// the repository unrestored.
func (r *Repository) Restore(ctx context.Context) (RestoreReport, error) {
	if r.restored {
		return RestoreReport{}, ErrAlreadyRestored
	}

	report := RestoreReport{Skipped: []string{}, Ambiguous: []Ambiguity{}}

	n, err := r.restoreFingerprints(ctx, keys.PrefixDefault, &report)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("restore default fingerprints: %w", err)
	}
	report.DefaultFingerprints = n

	n, err = r.restoreFingerprints(ctx, keys.PrefixCurrent, &report)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("restore fingerprints: %w", err)
	}
	report.CurrentFingerprints = n

	n, err = r.restoreObjects(ctx, keys.PrefixOwner, &report, func(k model.ObjectKey, fields map[string]string) bool {
		owner, ok := fields[keys.FieldOwner]
		if !ok {
			return false
		}
		r.owners[k] = owner
		return true
	})
	if err != nil {
		return RestoreReport{}, fmt.Errorf("restore owners: %w", err)
	}
	report.Owners = n

	n, err = r.restoreObjects(ctx, keys.PrefixDefaultObject, &report, func(k model.ObjectKey, fields map[string]string) bool {
		r.hwDefaults[k] = model.FromMap(fields)
		return true
	})
	if err != nil {
		return RestoreReport{}, fmt.Errorf("restore hardware defaults: %w", err)
	}
	report.HardwareDefaults = n

	n, err = r.restoreObjects(ctx, keys.PrefixDefaultForward, &report, func(k model.ObjectKey, fields map[string]string) bool {
		r.defaults[k] = model.FromMap(fields)
		return true
	})
	if err != nil {
		return RestoreReport{}, fmt.Errorf("restore default snapshots: %w", err)
	}
	report.DefaultSnapshots = n

	n, err = r.restoreObjects(ctx, keys.PrefixForward, &report, func(k model.ObjectKey, fields map[string]string) bool {
		r.forward[k] = model.FromMap(fields)
		return true
	})
	if err != nil {
		return RestoreReport{}, fmt.Errorf("restore attributes: %w", err)
	}
	report.Objects = n

	sort.Strings(report.Skipped)
	report.Ambiguous = r.ambiguities()
	for _, a := range report.Ambiguous {
		slog.Warn("ambiguous fingerprint",
			"fingerprint", a.Fingerprint,
			"type", a.Type,
			"objects", a.Objects,
		)
	}

	r.restored = true
	slog.Info("bookkeeping restored",
		"objects", report.Objects,
		"fingerprints", report.CurrentFingerprints,
		"default_fingerprints", report.DefaultFingerprints,
		"owners", report.Owners,
		"hardware_defaults", report.HardwareDefaults,
		"skipped", len(report.Skipped),
		"ambiguous", len(report.Ambiguous),
	)
	return report, nil
}

// restoreFingerprints loads every fingerprint hash under prefix. Each field is
// an object key; fields that do not parse are skipped.
func (r *Repository) restoreFingerprints(ctx context.Context, prefix string, report *RestoreReport) (int, error) {
	names, err := r.source.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, name := range names {
		fields, err := r.source.HGetAll(ctx, name)
		if err != nil {
			return 0, err
		}
		for field := range fields {
			k, err := model.ParseObjectKey(field)
			if err != nil {
				slog.Error("skipping fingerprint entry", "fingerprint", name, "field", field, "error", err)
				report.Skipped = append(report.Skipped, name+" "+field)
				continue
			}
			r.addFingerprint(keys.Fingerprint(name), k)
			loaded++
		}
	}
	return loaded, nil
}

// restoreObjects loads every object-scoped hash under prefix through load.
// load returns false when the fields are unusable.
func (r *Repository) restoreObjects(ctx context.Context, prefix string, report *RestoreReport, load func(model.ObjectKey, map[string]string) bool) (int, error) {
	names, err := r.source.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, name := range names {
		k, err := keys.ObjectKeyOf(prefix, name)
		if err != nil {
			slog.Error("skipping entry", "key", name, "error", err)
			report.Skipped = append(report.Skipped, name)
			continue
		}
		fields, err := r.source.HGetAll(ctx, name)
		if err != nil {
			return 0, err
		}
		if !load(k, fields) {
			slog.Warn("skipping entry", "key", name, "reason", "missing field")
			report.Skipped = append(report.Skipped, name)
			continue
		}
		loaded++
	}
	return loaded, nil
}

func (r *Repository) ambiguities() []Ambiguity {
	out := []Ambiguity{}
	for fp, byType := range r.fingerprints {
		for t, ks := range byType {
			if len(ks) < 2 {
				continue
			}
			a := Ambiguity{Fingerprint: fp.String(), Type: string(t)}
			for _, k := range ks {
				a.Objects = append(a.Objects, k.String())
			}
			out = append(out, a)
		}
	}
	sortAmbiguities(out)
	return out
}
