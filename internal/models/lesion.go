package models

import (
	"errors"
	"fmt"
)

// Attribute keys every lesion record must carry.
const (
	AttrName      = "name"
	AttrPatientID = "patient_id"
	AttrFID       = "fid"
	AttrIJK       = "ijk"
	AttrClinSig   = "ClinSig"
)

// ClinSigTrue is the raw marker for a clinically significant finding.
const ClinSigTrue = "TRUE"

// ErrMissingAttribute is returned when a lesion attribute map lacks a
// required key.
var ErrMissingAttribute = errors.New("missing lesion attribute")

// Centroid is a voxel-space coordinate.
type Centroid struct {
	X, Y, Z int
}

func (c Centroid) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z)
}

// Identity names a single lesion across all modality streams.
type Identity struct {
	PatientID string
	FID       string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s", id.PatientID, id.FID)
}

// LesionRecord holds the attributes attached to one lesion in one modality
// stream.
type LesionRecord struct {
	// Name is a path of the form <root>/<patient>/<modality-tag>
	Name      string
	PatientID string
	FID       string
	// IJK is the raw "<i> <j> <k>" coordinate record
	IJK string
	// ClinSig is the raw clinical significance marker
	ClinSig string
	// Extra keeps any attributes beyond the required ones
	Extra map[string]string
}

// NewLesionRecord validates a raw attribute map and converts it into a
// LesionRecord.
func NewLesionRecord(attrs map[string]string) (LesionRecord, error) {
	var rec LesionRecord
	for _, key := range []string{AttrName, AttrPatientID, AttrFID, AttrIJK, AttrClinSig} {
		if _, ok := attrs[key]; !ok {
			return rec, fmt.Errorf("%w: %q", ErrMissingAttribute, key)
		}
	}

	rec.Name = attrs[AttrName]
	rec.PatientID = attrs[AttrPatientID]
	rec.FID = attrs[AttrFID]
	rec.IJK = attrs[AttrIJK]
	rec.ClinSig = attrs[AttrClinSig]

	for k, v := range attrs {
		switch k {
		case AttrName, AttrPatientID, AttrFID, AttrIJK, AttrClinSig:
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[k] = v
	}

	return rec, nil
}

// Identity returns the (patient_id, fid) pair of the record.
func (r LesionRecord) Identity() Identity {
	return Identity{PatientID: r.PatientID, FID: r.FID}
}

// ClinicallySignificant reports whether the raw marker equals "TRUE".
func (r LesionRecord) ClinicallySignificant() bool {
	return r.ClinSig == ClinSigTrue
}

func (r LesionRecord) String() string {
	return fmt.Sprintf("{name: %s, patient_id: %s, fid: %s, ijk: %s, ClinSig: %s}",
		r.Name, r.PatientID, r.FID, r.IJK, r.ClinSig)
}

// LesionPair is one item produced by a lesion source: every lesion found for
// a single (patient, modality) combination together with its volume.
type LesionPair struct {
	Lesions []LesionRecord
	Volume  Volume
}

// Sample is one aligned training unit.
type Sample struct {
	// Patches holds one patch per requested modality
	Patches  []Patch
	Label    bool
	Identity Identity
}
