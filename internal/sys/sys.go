package sys

const (
	Quantum     = 4096
	Qset        = 1000
	DeviceCount = 4
	DeviceName  = "scull"
)
