package contacts

// Fixtures returns realistic sample contacts for trying the app out
func Fixtures() []Input {
	return []Input{
		{
			Name:        "Sarah",
			Surname:     "Chen",
			Email:       "sarah.chen@email.com",
			PhoneNumber: "555 010 101",
		},
		{
			Name:        "Marcus",
			Surname:     "Williams",
			Email:       "marcus.w@company.com",
			PhoneNumber: "555 010 102",
		},
		{
			Name:    "Alex",
			Surname: "Thompson",
			Email:   "alex.thompson@email.com",
		},
		{
			Name:        "Jennifer",
			Surname:     "Rodriguez",
			Email:       "jen.rodriguez@company.com",
			PhoneNumber: "+1 555 010 105",
		},
		{
			Name:    "David",
			Surname: "Park",
			Email:   "dpark@startup.io",
		},
		{
			Name:        "Lisa",
			Surname:     "Anderson",
			Email:       "lisa.anderson@agency.com",
			PhoneNumber: "(555) 010.107",
		},
		{
			Name:    "Tom",
			Surname: "O'Brien",
			Email:   "tom.obrien@network.org",
		},
	}
}
