package state

var (
	marketplaceConfigKey        = []byte("marketplace/config")
	marketplaceOfferingCountKey = []byte("marketplace/offerings-count")
	marketplaceOfferingPrefix   = []byte("marketplace/offering/")

	hostHeightKey = []byte("host/height")
)
