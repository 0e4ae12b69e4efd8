package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys are namespaced by instance name to enable multiple brewboard
// instances to safely coexist on a single Redis server.
//
// Key pattern: brewboard:{instance_name}:{entity}:{id}

// DailyKey returns the Redis key for a DailyAggregate document.
// Pattern: brewboard:{instance_name}:daily:{YYYY-MM-DD}
func DailyKey(instanceName, date string) string {
	return fmt.Sprintf("brewboard:%s:daily:%s", instanceName, date)
}

// OrderKey returns the Redis key for an OrderRecord document.
// Pattern: brewboard:{instance_name}:order:{order_id}
func OrderKey(instanceName, orderID string) string {
	return fmt.Sprintf("brewboard:%s:order:%s", instanceName, orderID)
}

// UserOrdersKey returns the Redis key for a user's order index ZSET.
// Score is the order timestamp in unix nanoseconds, member is the order ID.
// This is the user-scoped index that keeps history queries off the
// DailyAggregate stamp lists.
// Pattern: brewboard:{instance_name}:user_orders:{user_id}
func UserOrdersKey(instanceName, userID string) string {
	return fmt.Sprintf("brewboard:%s:user_orders:%s", instanceName, userID)
}

// NoticeKey returns the Redis key for a Notice document.
// Pattern: brewboard:{instance_name}:notice:{notice_id}
func NoticeKey(instanceName, noticeID string) string {
	return fmt.Sprintf("brewboard:%s:notice:%s", instanceName, noticeID)
}

// NoticesIndexKey returns the Redis key for the notice listing ZSET.
// Score is the notice timestamp in unix nanoseconds, member is the notice ID.
// Pattern: brewboard:{instance_name}:notices
func NoticesIndexKey(instanceName string) string {
	return fmt.Sprintf("brewboard:%s:notices", instanceName)
}
