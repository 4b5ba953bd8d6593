package dynamokv

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ttlAttr is the attribute DynamoDB TTL is configured on.
const ttlAttr = "ttl"

// IsExpired reports whether an item's TTL has passed. DynamoDB removes
// expired items lazily (often hours later), so reads must filter them.
func IsExpired(item map[string]types.AttributeValue, now time.Time) bool {
	ttlNum, ok := item[ttlAttr].(*types.AttributeValueMemberN)
	if !ok {
		return false // No TTL = live
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now.Unix()
}

// TTLFilterExpr returns the filter expression that excludes expired items.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// ttlFilterNames returns expression attribute names for the TTL filter.
func ttlFilterNames() map[string]string {
	return map[string]string{"#ttl": ttlAttr}
}

// ttlFilterValues returns expression attribute values for the TTL filter.
func ttlFilterValues(now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(now.Unix(), 10),
		},
	}
}

// expiresAt returns the TTL attribute value, in unix seconds, for a lifetime
// starting now. Partial seconds round up so a key never expires early.
func expiresAt(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl + time.Second - 1).Unix()
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
