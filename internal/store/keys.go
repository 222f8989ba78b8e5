package store

// Persisted keys. The names are part of the on-disk format; do not rename.
const (
	KeyDeviceID          = "localzpush.deviceId"
	KeyStarted           = "localzpush.started"
	KeyPushEnabled       = "localzpush.pushEnabled"
	KeyRegistrationState = "localzpush.registrationState"
	KeyDeviceToken       = "localzpush.deviceToken"
	KeyDeviceName        = "localzpush.deviceName"
	KeyTokenVersion      = "localzpush.tokenVersion"
	// Endpoint resolved by the last run, compared on the next one
	KeyRegionCode = "localzpush.regionCode"
	KeyHost       = "localzpush.host"

	KeyLocationEnabled  = "localzpush.locationEnabled"
	KeyDynamicConfig    = "localzpush.dynamicConfig"
	KeyLastTrackingDate = "localzpush.lastDynamicTrackingDate"
	KeyLastLocation     = "localzpush.dynamicLastLocation"
)
