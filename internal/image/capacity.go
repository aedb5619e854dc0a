package image

// DefaultCapacityWarnRatio is the share of device capacity above which an
// image triggers a soft warning.
const DefaultCapacityWarnRatio = 0.9

// NearCapacity reports whether imageSize exceeds ratio of deviceSize.
// A non-positive ratio disables the warning.
func NearCapacity(imageSize, deviceSize uint64, ratio float64) bool {
	if ratio <= 0 || deviceSize == 0 {
		return false
	}
	return float64(imageSize) > ratio*float64(deviceSize)
}

// Exceeds reports whether the image cannot fit on the device at all.
func Exceeds(imageSize, deviceSize uint64) bool {
	return imageSize > deviceSize
}
