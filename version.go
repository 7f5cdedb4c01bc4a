package billing

// InstrumentationVersion is reported alongside telemetry emitted by this
// module.
const InstrumentationVersion = "0.1.0"
