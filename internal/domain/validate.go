package domain

import (
	"fmt"
	"math"
)

// ValidateDemand checks a demand for input defects: missing identifier,
// non-finite or negative numeric fields, and missing required quantities.
func ValidateDemand(d *Demand) error {
	if d == nil {
		return fmt.Errorf("%w: nil demand", ErrInvalidInput)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing demand id", ErrInvalidInput)
	}
	if err := checkNumber("required_power", d.RequiredPower, true); err != nil {
		return err
	}
	if err := checkNumber("required_memory", d.RequiredMemory, true); err != nil {
		return err
	}
	if err := checkNumber("required_storage", d.RequiredStorage, false); err != nil {
		return err
	}
	if err := checkNumber("max_price_per_unit", d.MaxPricePerUnit, true); err != nil {
		return err
	}
	if err := checkNumber("min_gpu_memory", d.MinGPUMemory, false); err != nil {
		return err
	}
	if d.MinReputation != nil {
		if err := checkNumber("min_reputation", *d.MinReputation, false); err != nil {
			return err
		}
	}
	return nil
}

// ValidateResource checks a resource for input defects
func ValidateResource(r *Resource) error {
	if r == nil {
		return fmt.Errorf("%w: nil resource", ErrInvalidInput)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: missing resource id", ErrInvalidInput)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"computation_power", r.ComputationPower},
		{"available_memory", r.AvailableMemory},
		{"available_storage", r.AvailableStorage},
		{"gpu_memory", r.GPUMemory},
		{"price_per_unit", r.PricePerUnit},
		{"reputation", r.Reputation},
	}
	for _, f := range fields {
		if err := checkNumber(f.name, f.value, false); err != nil {
			return err
		}
	}
	return nil
}

func checkNumber(field string, v float64, required bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, field)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s is negative (%g)", ErrInvalidInput, field, v)
	}
	if required && v == 0 {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return nil
}
