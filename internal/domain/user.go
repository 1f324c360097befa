package domain

// User is a registered account. Email is the unique key.
type User struct {
	ID       string `bson:"_id,omitempty" dynamodbav:"_id,omitempty" json:"_id,omitempty"`
	FName    string `bson:"fname" dynamodbav:"fname" json:"fname"`
	LName    string `bson:"lname" dynamodbav:"lname" json:"lname"`
	Email    string `bson:"email" dynamodbav:"email" json:"email"`
	Password string `bson:"password" dynamodbav:"password" json:"-"`
}
