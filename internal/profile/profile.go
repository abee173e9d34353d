// Package profile holds the questionnaire answer set submitted to the
// matching service.
//
// Every field is optional. A nil field means the question is unanswered,
// which is distinct from an explicit "no". Fields are grouped by the
// questionnaire domain that asks them, but the wire form is flat JSON.
package profile

// MaritalStatus is the identity step's relationship answer.
type MaritalStatus string

const (
	MaritalSingle     MaritalStatus = "single"
	MaritalMarried    MaritalStatus = "married"
	MaritalCohabiting MaritalStatus = "cohabiting"
	MaritalSeparated  MaritalStatus = "separated"
	MaritalWidowed    MaritalStatus = "widowed"
)

// HomeStatus describes the household's tenure.
type HomeStatus string

const (
	HomeOwner                HomeStatus = "owner"
	HomeRenter               HomeStatus = "renter"
	HomeLocalAuthorityTenant HomeStatus = "local_authority_tenant"
	HomeLivingWithFamily     HomeStatus = "living_with_family"
	HomeHomeless             HomeStatus = "homeless"
	HomeLandlord             HomeStatus = "landlord"
)

// HomeType is the building type; only asked of owners.
type HomeType string

const (
	HomeDetached     HomeType = "detached"
	HomeSemiDetached HomeType = "semi_detached"
	HomeTerraced     HomeType = "terraced"
	HomeApartment    HomeType = "apartment"
	HomeBungalow     HomeType = "bungalow"
)

// EmploymentStatus is the work step's main answer.
type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentStudent      EmploymentStatus = "student"
	EmploymentHomemaker    EmploymentStatus = "homemaker"
)

// IncomeBracket is the gross household income band.
type IncomeBracket string

const (
	IncomeUnder20k IncomeBracket = "<20k"
	Income20To40k  IncomeBracket = "20-40k"
	Income40To60k  IncomeBracket = "40-60k"
	Income60To80k  IncomeBracket = "60-80k"
	IncomeOver80k  IncomeBracket = "80k+"
)

// VehicleType is the fuel type of the household's car, or "none".
type VehicleType string

const (
	VehiclePetrol   VehicleType = "petrol"
	VehicleDiesel   VehicleType = "diesel"
	VehicleHybrid   VehicleType = "hybrid"
	VehicleElectric VehicleType = "electric"
	VehicleNone     VehicleType = "none"
)

// Identity is step 1, "About You".
type Identity struct {
	Age             *int           `json:"age,omitempty"`
	County          *string        `json:"county,omitempty"`
	MaritalStatus   *MaritalStatus `json:"marital_status,omitempty"`
	Nationality     *string        `json:"nationality,omitempty"`
	ResidencyStatus *string        `json:"residency_status,omitempty"`
}

// Housing is step 2, "Your Home".
type Housing struct {
	HomeStatus       *HomeStatus `json:"home_status,omitempty"`
	HomeType         *HomeType   `json:"home_type,omitempty"`
	HomeYearBuilt    *int        `json:"home_year_built,omitempty"`
	BERRating        *string     `json:"ber_rating,omitempty"`
	HasSolarPV       *bool       `json:"has_solar_pv,omitempty"`
	HasHeatPump      *bool       `json:"has_heat_pump,omitempty"`
	IsFirstTimeBuyer *bool       `json:"is_first_time_buyer,omitempty"`
	HasMortgage      *bool       `json:"has_mortgage,omitempty"`
	PaysRent         *bool       `json:"pays_rent,omitempty"`
}

// Family is step 3.
type Family struct {
	HasChildren            *bool `json:"has_children,omitempty"`
	NumChildren            *int  `json:"num_children,omitempty"`
	YoungestChildAge       *int  `json:"youngest_child_age,omitempty"`
	IsLoneParent           *bool `json:"is_lone_parent,omitempty"`
	IsCarer                *bool `json:"is_carer,omitempty"`
	HasDependentRelatives  *bool `json:"has_dependent_relatives,omitempty"`
	NumDependentRelatives  *int  `json:"num_dependent_relatives,omitempty"`
	HasIncapacitatedChild  *bool `json:"has_incapacitated_child,omitempty"`
	IsExpectingOrNewParent *bool `json:"is_expecting_or_new_parent,omitempty"`
	HasHomeCarerSpouse     *bool `json:"has_home_carer_spouse,omitempty"`
}

// Employment is step 4, "Work & Income".
type Employment struct {
	EmploymentStatus *EmploymentStatus `json:"employment_status,omitempty"`
	IncomeBracket    *IncomeBracket    `json:"income_bracket,omitempty"`
	IsFreelancer     *bool             `json:"is_freelancer,omitempty"`
	WorksFromHome    *bool             `json:"works_from_home,omitempty"`
}

// Welfare is step 5, "Welfare & Health".
//
// WelfarePayments is nil when unanswered and empty when the user
// answered "none", so it is serialised without omitempty.
type Welfare struct {
	WelfarePayments        []string `json:"welfare_payments"`
	HasMedicalCard         *bool    `json:"has_medical_card,omitempty"`
	HasDisability          *bool    `json:"has_disability,omitempty"`
	HouseholdDisability    *bool    `json:"household_disability,omitempty"`
	HasMedicalExpenses     *bool    `json:"has_medical_expenses,omitempty"`
	IsVisuallyImpaired     *bool    `json:"is_visually_impaired,omitempty"`
	HasNursingHomeExpenses *bool    `json:"has_nursing_home_expenses,omitempty"`
}

// Education is step 6, "Education & Business".
type Education struct {
	IsStudent         *bool `json:"is_student,omitempty"`
	PlanningEducation *bool `json:"planning_education,omitempty"`
	OwnsBusiness      *bool `json:"owns_business,omitempty"`
	PlanningBusiness  *bool `json:"planning_business,omitempty"`
	BusinessAgeMonths *int  `json:"business_age_months,omitempty"`
	NumEmployees      *int  `json:"num_employees,omitempty"`
}

// Transport is step 7, "Transport & Other".
type Transport struct {
	OwnsVehicle        *bool        `json:"owns_vehicle,omitempty"`
	VehicleType        *VehicleType `json:"vehicle_type,omitempty"`
	PlanningEVPurchase *bool        `json:"planning_ev_purchase,omitempty"`
	IsFarmer           *bool        `json:"is_farmer,omitempty"`
	IsLandlord         *bool        `json:"is_landlord,omitempty"`
}

// Profile is the full answer set. The zero value is the empty profile.
//
// Domains are embedded so that the JSON form stays flat, matching the
// matching service's request body.
type Profile struct {
	Identity
	Housing
	Family
	Employment
	Welfare
	Education
	Transport
}

// Ptr returns a pointer to v. It keeps patch literals short.
func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	return Profile{}.Apply(Patch{Set: p})
}

// IsEmpty reports whether no question has been answered.
func (p Profile) IsEmpty() bool {
	return len(p.Answered()) == 0
}

// Answered returns the wire names of all answered fields in step order.
func (p Profile) Answered() []string {
	var names []string
	for _, f := range fields {
		if !p.field(f).IsNil() {
			names = append(names, f.Name)
		}
	}
	return names
}
