// Command gen-token mints an HS256 JWT accepted by the API in local and
// test auth modes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()
	user := flag.String("user", "local-user", "subject claim of the minted token")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
	if secret == "" {
		secret = os.Getenv("TEST_JWT_SECRET")
	}
	if secret == "" {
		log.Fatal("LOCAL_AUTH_SHARED_SECRET or TEST_JWT_SECRET must be set")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": *user,
		"iat": now.Unix(),
		"exp": now.Add(*ttl).Unix(),
		"jti": uuid.NewString(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Print(signed)
}
