package profile

// dependency ties follow-up questions to the answer that makes them
// meaningful. When relevant reports false, the dependents must not keep
// a stale answer.
type dependency struct {
	controllers []string
	dependents  []string
	relevant    func(p Profile) bool
}

var dependencies = []dependency{
	{
		controllers: []string{"has_children"},
		dependents:  []string{"num_children", "youngest_child_age", "is_lone_parent", "has_incapacitated_child"},
		relevant:    func(p Profile) bool { return isTrue(p.HasChildren) },
	},
	{
		controllers: []string{"has_dependent_relatives"},
		dependents:  []string{"num_dependent_relatives"},
		relevant:    func(p Profile) bool { return isTrue(p.HasDependentRelatives) },
	},
	{
		controllers: []string{"home_status"},
		dependents:  []string{"home_type", "home_year_built", "ber_rating", "has_solar_pv", "has_heat_pump"},
		relevant: func(p Profile) bool {
			return p.HomeStatus != nil && (*p.HomeStatus == HomeOwner || *p.HomeStatus == HomeLandlord)
		},
	},
	{
		controllers: []string{"employment_status"},
		dependents:  []string{"is_freelancer"},
		relevant: func(p Profile) bool {
			return p.EmploymentStatus != nil && *p.EmploymentStatus == EmploymentSelfEmployed
		},
	},
	{
		controllers: []string{"employment_status"},
		dependents:  []string{"works_from_home"},
		relevant: func(p Profile) bool {
			return p.EmploymentStatus != nil &&
				(*p.EmploymentStatus == EmploymentEmployed || *p.EmploymentStatus == EmploymentSelfEmployed)
		},
	},
	{
		controllers: []string{"owns_business", "planning_business"},
		dependents:  []string{"business_age_months", "num_employees"},
		relevant:    func(p Profile) bool { return isTrue(p.OwnsBusiness) || isTrue(p.PlanningBusiness) },
	},
	{
		controllers: []string{"vehicle_type"},
		dependents:  []string{"planning_ev_purchase"},
		relevant:    func(p Profile) bool { return p.VehicleType == nil || *p.VehicleType != VehicleElectric },
	},
}

// Reconcile extends patch so that applying it to current leaves no
// dependent answer whose controlling answer now rules it out. It also
// derives owns_vehicle from vehicle_type. The result is meant to be
// applied as a single update so no inconsistent profile is observable.
//
// Only dependencies whose controller the patch touches are considered.
func Reconcile(current Profile, patch Patch) Patch {
	if patch.Set.VehicleType != nil && !patch.Touches("owns_vehicle") {
		patch = patch.Merge(Patch{Set: Profile{Transport: Transport{
			OwnsVehicle: Ptr(*patch.Set.VehicleType != VehicleNone),
		}}})
	}

	next := current.Apply(patch)
	var clear []string
	for _, dep := range dependencies {
		if !touchesAny(patch, dep.controllers) || dep.relevant(next) {
			continue
		}
		// Every dependent is cleared, answered in current or not, so the
		// patch stays correct when applied to a newer profile.
		clear = append(clear, dep.dependents...)
	}
	if len(clear) == 0 {
		return patch
	}
	return patch.Merge(Patch{Clear: clear})
}

// Inconsistent lists dependent fields that hold an answer although their
// controlling answer rules them out. A profile built only through
// Reconcile reports none.
func Inconsistent(p Profile) []string {
	var out []string
	for _, dep := range dependencies {
		if dep.relevant(p) {
			continue
		}
		for _, name := range dep.dependents {
			if !p.field(fieldByName[name]).IsNil() {
				out = append(out, name)
			}
		}
	}
	return out
}

func touchesAny(patch Patch, names []string) bool {
	for _, name := range names {
		if patch.Touches(name) {
			return true
		}
	}
	return false
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
