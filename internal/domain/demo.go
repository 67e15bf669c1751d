package domain

// DemoQuizzes is the collection seeded into empty storage.
func DemoQuizzes() []Quiz {
	return []Quiz{
		{
			ID:    "demo_q1",
			Title: "Cultura General (Demo)",
			Questions: []Question{
				{
					ID:        "dq1_1",
					Text:      "¿Capital de Francia?",
					TimeLimit: 15,
					Options: []Option{
						{ID: "dq1_1_o1", Text: "Berlín"},
						{ID: "dq1_1_o2", Text: "Madrid"},
						{ID: "dq1_1_o3", Text: "París", IsCorrect: true},
						{ID: "dq1_1_o4", Text: "Roma"},
					},
				},
				{
					ID:        "dq1_2",
					Text:      "¿2 + 2?",
					TimeLimit: 10,
					Order:     1,
					Options: []Option{
						{ID: "dq1_2_o1", Text: "3"},
						{ID: "dq1_2_o2", Text: "4", IsCorrect: true},
						{ID: "dq1_2_o3", Text: "5"},
					},
				},
			},
		},
		{
			ID:    "demo_q2",
			Title: "Planetas (Demo)",
			Questions: []Question{
				{
					ID:        "dq2_1",
					Text:      "¿Planeta Rojo?",
					TimeLimit: 12,
					Options: []Option{
						{ID: "dq2_1_o1", Text: "Júpiter"},
						{ID: "dq2_1_o2", Text: "Marte", IsCorrect: true},
						{ID: "dq2_1_o3", Text: "Venus"},
						{ID: "dq2_1_o4", Text: "Saturno"},
					},
				},
			},
		},
	}
}
