package common

// DeviceIDHeaderName is the HTTP header carrying the reporting device id on
// sync requests. Used for log correlation only, not authorization.
const DeviceIDHeaderName = "X-Device-Id"
