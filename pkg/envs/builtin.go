package envs

// Builtin registrations for the classic control suite the engine ships.
// Space descriptors follow the usual gym conventions for these tasks.

func init() {
	for id, ctor := range map[string]Constructor{
		"CartPole-v1":    cartPole,
		"Pendulum-v1":    pendulum,
		"LunarLander-v2": lunarLander,
	} {
		if err := Register(id, ctor); err != nil {
			panic(err)
		}
	}
}

func cartPole() (*Spec, error) {
	return &Spec{
		ID:         "CartPole-v1",
		EntryPoint: "control.cartpole",
		Observation: Space{
			Kind:  SpaceBox,
			Shape: []int{4},
			Low:   -4.8,
			High:  4.8,
		},
		Action:          Space{Kind: SpaceDiscrete, N: 2},
		MaxEpisodeSteps: 500,
	}, nil
}

func pendulum() (*Spec, error) {
	return &Spec{
		ID:         "Pendulum-v1",
		EntryPoint: "control.pendulum",
		Observation: Space{
			Kind:  SpaceBox,
			Shape: []int{3},
			Low:   -8.0,
			High:  8.0,
		},
		Action: Space{
			Kind:  SpaceBox,
			Shape: []int{1},
			Low:   -2.0,
			High:  2.0,
		},
		MaxEpisodeSteps: 200,
	}, nil
}

func lunarLander() (*Spec, error) {
	return &Spec{
		ID:         "LunarLander-v2",
		EntryPoint: "control.lunar_lander",
		Observation: Space{
			Kind:  SpaceBox,
			Shape: []int{8},
			Low:   -10.0,
			High:  10.0,
		},
		Action:          Space{Kind: SpaceDiscrete, N: 4},
		MaxEpisodeSteps: 1000,
	}, nil
}
