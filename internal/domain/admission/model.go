package admission

import "time"

// Admission is one row of the admissions table.
type Admission struct {
	RowID              int64      `db:"row_id" json:"row_id" yaml:"row_id"`
	SubjectID          int64      `db:"subject_id" json:"subject_id" yaml:"subject_id"`
	HadmID             int64      `db:"hadm_id" json:"hadm_id" yaml:"hadm_id"`
	AdmitTime          time.Time  `db:"admittime" json:"admittime" yaml:"admittime"`
	DischTime          time.Time  `db:"dischtime" json:"dischtime" yaml:"dischtime"`
	DeathTime          *time.Time `db:"deathtime" json:"deathtime,omitempty" yaml:"deathtime,omitempty"`
	AdmissionType      string     `db:"admission_type" json:"admission_type" yaml:"admission_type"`
	AdmissionLocation  string     `db:"admission_location" json:"admission_location" yaml:"admission_location"`
	DischargeLocation  string     `db:"discharge_location" json:"discharge_location" yaml:"discharge_location"`
	Insurance          string     `db:"insurance" json:"insurance" yaml:"insurance"`
	Language           string     `db:"language" json:"language,omitempty" yaml:"language,omitempty"`
	Religion           string     `db:"religion" json:"religion,omitempty" yaml:"religion,omitempty"`
	MaritalStatus      string     `db:"marital_status" json:"marital_status,omitempty" yaml:"marital_status,omitempty"`
	Ethnicity          string     `db:"ethnicity" json:"ethnicity" yaml:"ethnicity"`
	EDRegTime          *time.Time `db:"edregtime" json:"edregtime,omitempty" yaml:"edregtime,omitempty"`
	EDOutTime          *time.Time `db:"edouttime" json:"edouttime,omitempty" yaml:"edouttime,omitempty"`
	Diagnosis          string     `db:"diagnosis" json:"diagnosis,omitempty" yaml:"diagnosis,omitempty"`
	HospitalExpireFlag int        `db:"hospital_expire_flag" json:"hospital_expire_flag" yaml:"hospital_expire_flag"`
	HasCharteventsData int        `db:"has_chartevents_data" json:"has_chartevents_data" yaml:"has_chartevents_data"`
}

// LengthOfStay is the time between admission and discharge.
func (a *Admission) LengthOfStay() time.Duration {
	return a.DischTime.Sub(a.AdmitTime)
}

// Patient is one row of the patients table.
type Patient struct {
	RowID      int64      `db:"row_id" json:"row_id" yaml:"row_id"`
	SubjectID  int64      `db:"subject_id" json:"subject_id" yaml:"subject_id"`
	Gender     string     `db:"gender" json:"gender" yaml:"gender"`
	DOB        time.Time  `db:"dob" json:"dob" yaml:"dob"`
	DOD        *time.Time `db:"dod" json:"dod,omitempty" yaml:"dod,omitempty"`
	DODHosp    *time.Time `db:"dod_hosp" json:"dod_hosp,omitempty" yaml:"dod_hosp,omitempty"`
	DODSSN     *time.Time `db:"dod_ssn" json:"dod_ssn,omitempty" yaml:"dod_ssn,omitempty"`
	ExpireFlag int        `db:"expire_flag" json:"expire_flag" yaml:"expire_flag"`
}

// ICD9 is a coded diagnosis or procedure of an admission with its
// dictionary titles.
type ICD9 struct {
	RowID      int64  `db:"row_id" json:"row_id" yaml:"row_id"`
	SubjectID  int64  `db:"subject_id" json:"subject_id" yaml:"subject_id"`
	HadmID     int64  `db:"hadm_id" json:"hadm_id" yaml:"hadm_id"`
	SeqNum     int    `db:"seq_num" json:"seq_num" yaml:"seq_num"`
	Code       string `db:"icd9_code" json:"icd9_code" yaml:"icd9_code"`
	ShortTitle string `db:"short_title" json:"short_title" yaml:"short_title"`
	LongTitle  string `db:"long_title" json:"long_title" yaml:"long_title"`
}

type (
	Diagnosis = ICD9
	Procedure = ICD9
)

// SubjectAdmissionCount is the number of admissions of one subject.
type SubjectAdmissionCount struct {
	SubjectID int64 `json:"subject_id"`
	Count     int   `json:"count"`
}

// Stats are corpus wide row counts.
type Stats struct {
	Patients   int `json:"patients"`
	Admissions int `json:"admissions"`
	Notes      int `json:"notes"`
}
