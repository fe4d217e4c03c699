package sensor

// Environment summarises accelerometer backend support.
type Environment struct {
	Provider  string
	Available bool
	Message   string
}

// DetectEnvironment reports whether driver can deliver samples on this host.
func DetectEnvironment(driver Driver) Environment {
	if driver == nil {
		return Environment{Provider: DriverNone, Message: "accelerometer disabled via config"}
	}
	env := Environment{Provider: driver.Name(), Available: driver.Available()}
	switch {
	case !env.Available:
		env.Message = "accelerometer not detected; feed will be skipped"
	case driver.Name() == DriverSynthetic:
		env.Message = "synthetic accelerometer stub"
	default:
		env.Message = "accelerometer ready"
	}
	return env
}
