package draft

import "sort"

// Validate checks that the selections are complete and consistent for the
// service type. It returns *ValidationError listing every problem found.
func Validate(service ServiceType, designID string, sel Selections) error {
	var v validator

	if designID == "" {
		v.add("designId", "required")
	}
	if !service.Valid() {
		v.add("serviceType", "unknown service type")
		return v.err()
	}

	switch service {
	case ClothOnly:
		v.require("fabricId", sel.FabricID)
		v.require("colorId", sel.ColorID)
		if !sel.Length.IsPositive() {
			v.add("length", "must be greater than 0")
		}
		if sel.GarmentID != "" {
			v.add("garmentId", "not allowed for cloth only")
		}
		if sel.Size != nil {
			v.add("size", "not allowed for cloth only")
		}
	case EmbroideryStitching:
		v.require("fabricId", sel.FabricID)
		v.require("colorId", sel.ColorID)
		v.require("garmentId", sel.GarmentID)
		v.size(sel.Size, true)
		v.noLength(sel)
	case SendYourFabric:
		if sel.ColorID != "" && sel.FabricID == "" {
			v.add("fabricId", "required when a color is selected")
		}
		if sel.GarmentID != "" {
			v.size(sel.Size, true)
		} else if sel.Size != nil {
			v.add("size", "requires a garment")
		}
		v.noLength(sel)
	}

	return v.err()
}

type validator struct {
	problems []Problem
}

func (v *validator) add(field, reason string) {
	v.problems = append(v.problems, Problem{Field: field, Reason: reason})
}

func (v *validator) require(field, value string) {
	if value == "" {
		v.add(field, "required")
	}
}

func (v *validator) noLength(sel Selections) {
	if !sel.Length.IsZero() {
		v.add("length", "only allowed for cloth only")
	}
}

func (v *validator) size(s *Size, required bool) {
	if s == nil {
		if required {
			v.add("size", "required")
		}
		return
	}
	switch {
	case s.StandardSizeID != "" && len(s.Custom) > 0:
		v.add("size", "choose a standard size or custom measurements, not both")
	case s.StandardSizeID == "" && len(s.Custom) == 0:
		v.add("size", "required")
	case len(s.Custom) > 0:
		names := make([]string, 0, len(s.Custom))
		for name := range s.Custom {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !s.Custom[name].IsPositive() {
				v.add("size.custom."+name, "must be greater than 0")
			}
		}
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}
