package migrations

// Cascade policy: department deletion is restricted in the service layer,
// so teacher and course FKs to departments carry no ON DELETE action.
// Teacher deletion nullifies course ownership; course and student deletion
// cascade through enrollments.
const schemaInit = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username VARCHAR(100) NOT NULL UNIQUE,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(20) NOT NULL CHECK (role IN ('ADMIN', 'TEACHER', 'STUDENT')),
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS departments (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL UNIQUE,
	code VARCHAR(50) NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS students (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	student_id VARCHAR(50) NOT NULL UNIQUE,
	first_name VARCHAR(100) NOT NULL DEFAULT '',
	last_name VARCHAR(100) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS teachers (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	teacher_id VARCHAR(50) NOT NULL UNIQUE,
	first_name VARCHAR(100) NOT NULL DEFAULT '',
	last_name VARCHAR(100) NOT NULL DEFAULT '',
	qualification VARCHAR(255) NOT NULL DEFAULT '',
	department_id UUID REFERENCES departments(id)
);

CREATE TABLE IF NOT EXISTS courses (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL UNIQUE,
	code VARCHAR(50) NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	credits INTEGER NOT NULL DEFAULT 0,
	department_id UUID NOT NULL REFERENCES departments(id),
	teacher_id UUID REFERENCES teachers(user_id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS enrollments (
	student_user_id UUID NOT NULL REFERENCES students(user_id) ON DELETE CASCADE,
	course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (student_user_id, course_id)
);

CREATE TABLE IF NOT EXISTS student_departments (
	student_user_id UUID NOT NULL REFERENCES students(user_id) ON DELETE CASCADE,
	department_id UUID NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
	PRIMARY KEY (student_user_id, department_id)
);

CREATE INDEX IF NOT EXISTS idx_courses_department ON courses(department_id);
CREATE INDEX IF NOT EXISTS idx_courses_teacher ON courses(teacher_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course_id);
`
