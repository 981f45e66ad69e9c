// Package schema enumerates the questionnaire fields the rest of the system
// operates on. The catalog is static: sections in presentation order, each
// field with its control kind and, for grouped controls, the set of values
// sharing the field name.
package schema

type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindRadio    Kind = "radio"
	KindCheckbox Kind = "checkbox"
	KindDate     Kind = "date"
)

type Field struct {
	Name    string
	Label   string
	Kind    Kind
	Options []string
}

type Section struct {
	ID     string
	Title  string
	Fields []Field
}

var sections = []Section{
	{
		ID:    "personal",
		Title: "Personal Information",
		Fields: []Field{
			{Name: "surname", Label: "Surname", Kind: KindText},
			{Name: "givenNames", Label: "Given Names", Kind: KindText},
			{Name: "fullNameNative", Label: "Full Name in Native Alphabet", Kind: KindText},
			{Name: "gender", Label: "Gender", Kind: KindRadio, Options: []string{"MALE", "FEMALE"}},
			{Name: "maritalStatus", Label: "Marital Status", Kind: KindSelect, Options: []string{"SINGLE", "MARRIED", "DIVORCED", "WIDOWED", "SEPARATED"}},
			{Name: "birthDate", Label: "Date of Birth", Kind: KindDate},
			{Name: "birthCity", Label: "City of Birth", Kind: KindText},
			{Name: "birthCountry", Label: "Country of Birth", Kind: KindText},
			{Name: "nationality", Label: "Nationality", Kind: KindText},
		},
	},
	{
		ID:    "travel",
		Title: "Travel Information",
		Fields: []Field{
			{Name: "purposeOfTrip", Label: "Purpose of Trip", Kind: KindSelect, Options: []string{"B1 BUSINESS", "B2 TOURISM", "F1 STUDENT", "H1B WORK", "J1 EXCHANGE", "OTHER"}},
			{Name: "arrivalDate", Label: "Intended Date of Arrival", Kind: KindDate},
			{Name: "lengthOfStay", Label: "Intended Length of Stay", Kind: KindText},
			{Name: "usStreetAddress", Label: "U.S. Street Address", Kind: KindText},
			{Name: "usCity", Label: "U.S. City", Kind: KindText},
			{Name: "usState", Label: "U.S. State", Kind: KindSelect, Options: USStates()},
			{Name: "tripPayer", Label: "Person Paying for Trip", Kind: KindRadio, Options: []string{"SELF", "OTHER PERSON", "EMPLOYER"}},
			{Name: "travelingWithOthers", Label: "Traveling with Others", Kind: KindRadio, Options: []string{"YES", "NO"}},
		},
	},
	{
		ID:    "contact",
		Title: "Address and Contact",
		Fields: []Field{
			{Name: "homeAddress", Label: "Home Street Address", Kind: KindText},
			{Name: "homeCity", Label: "Home City", Kind: KindText},
			{Name: "homeCountry", Label: "Home Country", Kind: KindText},
			{Name: "phone", Label: "Primary Phone Number", Kind: KindText},
			{Name: "email", Label: "Email Address", Kind: KindText},
			{Name: "socialMedia", Label: "Social Media Platforms", Kind: KindCheckbox, Options: []string{"FACEBOOK", "INSTAGRAM", "TWITTER", "LINKEDIN"}},
		},
	},
	{
		ID:    "passport",
		Title: "Passport Information",
		Fields: []Field{
			{Name: "passportNumber", Label: "Passport Number", Kind: KindText},
			{Name: "passportBookNumber", Label: "Passport Book Number", Kind: KindText},
			{Name: "issuingCountry", Label: "Issuing Country/Authority", Kind: KindText},
			{Name: "issuanceDate", Label: "Issuance Date", Kind: KindDate},
			{Name: "expirationDate", Label: "Expiration Date", Kind: KindDate},
			{Name: "lostPassport", Label: "Ever Lost a Passport", Kind: KindRadio, Options: []string{"YES", "NO"}},
		},
	},
	{
		ID:    "family",
		Title: "Family Information",
		Fields: []Field{
			{Name: "fatherSurname", Label: "Father's Surname", Kind: KindText},
			{Name: "fatherGivenNames", Label: "Father's Given Names", Kind: KindText},
			{Name: "motherSurname", Label: "Mother's Surname", Kind: KindText},
			{Name: "motherGivenNames", Label: "Mother's Given Names", Kind: KindText},
			{Name: "spouseName", Label: "Spouse's Full Name", Kind: KindText},
			{Name: "spouseBirthDate", Label: "Spouse's Date of Birth", Kind: KindDate},
		},
	},
	{
		ID:    "work",
		Title: "Work and Education",
		Fields: []Field{
			{Name: "primaryOccupation", Label: "Primary Occupation", Kind: KindSelect, Options: []string{"EMPLOYED", "SELF-EMPLOYED", "STUDENT", "RETIRED", "HOMEMAKER", "NOT EMPLOYED", "OTHER"}},
			{Name: "employerName", Label: "Present Employer or School", Kind: KindText},
			{Name: "employerAddress", Label: "Employer/School Address", Kind: KindText},
			{Name: "monthlyIncome", Label: "Monthly Income", Kind: KindText},
			{Name: "previousEducation", Label: "Educational Institutions Attended", Kind: KindTextarea},
		},
	},
	{
		ID:    "security",
		Title: "Security and Background",
		Fields: []Field{
			{Name: "priorVisaDenial", Label: "Ever Been Refused a U.S. Visa", Kind: KindRadio, Options: []string{"YES", "NO"}},
			{Name: "criminalRecord", Label: "Ever Been Arrested or Convicted", Kind: KindRadio, Options: []string{"YES", "NO"}},
			{Name: "securityNotes", Label: "Explanation (if any answer is YES)", Kind: KindTextarea},
		},
	},
}

// Sections returns the questionnaire sections in presentation order.
func Sections() []Section {
	return sections
}

// Fields returns every field flattened across sections, in order.
func Fields() []Field {
	fields := make([]Field, 0, 48)
	for _, section := range sections {
		fields = append(fields, section.Fields...)
	}
	return fields
}

// FieldNames returns the ordered names of every field.
func FieldNames() []string {
	fields := Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}
	return names
}

// Lookup finds a field by name.
func Lookup(name string) (Field, bool) {
	for _, field := range Fields() {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}
