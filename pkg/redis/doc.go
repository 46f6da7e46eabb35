// Package redis connects to the Redis server that backs shared state between
// notifykit replicas, such as cached provider access tokens.
//
// Connect retries the initial ping according to Config, and Healthcheck
// returns a probe for the service health endpoint.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package redis
