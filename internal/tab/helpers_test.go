package tab

import "tenant-dashboard/internal/orgcache"

func orgKey(org, kind, key string) orgcache.Key {
	return orgcache.Key{OrganizationID: org, Kind: kind, Key: key}
}
