package draft

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// contentKey is the canonical form of everything that makes two drafts the
// same customization. Quantity and price are excluded.
type contentKey struct {
	Service  ServiceType       `json:"s"`
	Design   string            `json:"d"`
	Fabric   string            `json:"f"`
	Color    string            `json:"c"`
	Length   string            `json:"l"`
	Garment  string            `json:"g"`
	Standard string            `json:"ss"`
	Custom   map[string]string `json:"cm,omitempty"`
}

// ContentKey returns a stable fingerprint of the draft's service type,
// design and selections. Two drafts are equivalent only when every
// selection field matches exactly.
func (d *Draft) ContentKey() string {
	k := contentKey{
		Service: d.ServiceType,
		Design:  d.Design.ID,
		Fabric:  d.Selections.FabricID,
		Color:   d.Selections.ColorID,
		Garment: d.Selections.GarmentID,
	}
	if !d.Selections.Length.IsZero() {
		k.Length = d.Selections.Length.String()
	}
	if s := d.Selections.Size; s != nil {
		k.Standard = s.StandardSizeID
		if len(s.Custom) > 0 {
			k.Custom = make(map[string]string, len(s.Custom))
			for name, v := range s.Custom {
				k.Custom[name] = v.String()
			}
		}
	}

	// Struct fields and map keys marshal in a fixed order.
	b, _ := json.Marshal(k)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
