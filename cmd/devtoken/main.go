// Command devtoken mints an access token for local testing. Accounts live
// in an external identity service; this tool signs with the same
// JWT_SECRET the server verifies with.
//
//	go run ./cmd/devtoken -user 1 -role STUDENT
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")

	userID := flag.Uint64("user", 1, "user id to put in the sub claim")
	role := flag.String("role", model.RoleStudent, "role claim (STUDENT or ADMIN)")
	ttl := flag.Int("ttl", 60, "token lifetime in minutes")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret, defaults to $JWT_SECRET")
	flag.Parse()

	if *role != model.RoleStudent && *role != model.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(*secret, *userID, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02T15:04:05Z07:00"))
}
